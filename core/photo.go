package core

import "strings"

// URIResolver turns a photo's data string into a reference the IoManager
// can open.
type URIResolver func(data string) string

// DefaultURIResolver treats bare paths as local files and returns anything
// already carrying a file:// or content:// scheme unchanged.
func DefaultURIResolver(data string) string {
	if strings.HasPrefix(data, "file://") || strings.HasPrefix(data, "content://") {
		return data
	}
	return "file://" + data
}

// Photo identifies one source image.  It is immutable and holds no native
// resources.
type Photo struct {
	id        int64
	data      string
	dateTaken int64
	uri       string
}

// NewPhoto builds a Photo.  A nil resolver selects DefaultURIResolver.
func NewPhoto(id int64, data string, dateTaken int64, resolve URIResolver) Photo {
	if resolve == nil {
		resolve = DefaultURIResolver
	}
	return Photo{id: id, data: data, dateTaken: dateTaken, uri: resolve(data)}
}

// PhotoFromPath wraps an externally selected path or content reference.
func PhotoFromPath(path string) Photo {
	return NewPhoto(0, path, 0, nil)
}

func (p Photo) ID() int64        { return p.id }
func (p Photo) Data() string     { return p.data }
func (p Photo) DateTaken() int64 { return p.dateTaken }

// URI returns the resolved reference.
func (p Photo) URI() string { return p.uri }

func (p Photo) String() string { return p.uri }
