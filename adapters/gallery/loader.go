// Package gallery builds photo lists from a directory of images.
package gallery

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// exifHeadBytes bounds how much of each file is searched for an EXIF block.
// JPEG keeps it in APP1 near the start of the file.
const exifHeadBytes = 256 << 10

// exifTimeLayout is the format of the EXIF date tags.
const exifTimeLayout = "2006:01:02 15:04:05"

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Loader lists the photos under a root directory.
type Loader struct {
	logger core.Logger
}

// NewLoader creates a Loader.  A nil logger discards output.
func NewLoader(l core.Logger) *Loader {
	if l == nil {
		l = core.NopLogger{}
	}
	return &Loader{logger: l}
}

// Load walks root and returns its images newest first.  Ids follow walk
// order; DateTaken comes from EXIF (see ExifDateTime), else the file's
// mtime.
func (ld *Loader) Load(ctx context.Context, root string) ([]core.Photo, error) {
	var photos []core.Photo
	var id int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !IsImage(path) {
			return nil
		}
		id++
		taken := ld.dateTaken(path, d)
		photos = append(photos, core.NewPhoto(id, path, taken.UnixMilli(), nil))
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "gallery.load", err)
	}

	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].DateTaken() > photos[j].DateTaken()
	})
	return photos, nil
}

// Paths wraps explicitly chosen files, preserving their order.
func (ld *Loader) Paths(paths []string) []core.Photo {
	photos := make([]core.Photo, 0, len(paths))
	for i, p := range paths {
		var taken int64
		if fi, err := os.Stat(p); err == nil {
			taken = fi.ModTime().UnixMilli()
		}
		photos = append(photos, core.NewPhoto(int64(i+1), p, taken, nil))
	}
	return photos
}

func (ld *Loader) dateTaken(path string, d fs.DirEntry) time.Time {
	t, err := ExifDateTime(path)
	if err == nil {
		return t
	}
	ld.logger.Debug("gallery.exif.skip", "path", path, "error", err.Error())
	if fi, err := d.Info(); err == nil {
		return fi.ModTime()
	}
	return time.Time{}
}

// ExifDateTime returns the capture time of the photo at path: the Exif
// sub-IFD's DateTimeOriginal, or the root IFD's DateTime when the camera did
// not record one.
func ExifDateTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, exifHeadBytes))
	if err != nil {
		return time.Time{}, err
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return time.Time{}, err
	}

	im := exifcommon.NewIfdMapping()
	ti := exif.NewTagIndex()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return time.Time{}, err
	}

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return time.Time{}, err
	}

	if exifIfd, err := index.RootIfd.ChildWithIfdPath(exifcommon.IfdExifStandardIfdIdentity); err == nil {
		if t, err := ifdTime(exifIfd, "DateTimeOriginal"); err == nil {
			return t, nil
		}
	}
	return ifdTime(index.RootIfd, "DateTime")
}

func ifdTime(ifd *exif.Ifd, name string) (time.Time, error) {
	tags, err := ifd.FindTagWithName(name)
	if err != nil {
		return time.Time{}, err
	}
	val, err := tags[0].Value()
	if err != nil {
		return time.Time{}, err
	}
	s, _ := val.(string)
	return time.ParseInLocation(exifTimeLayout, strings.TrimRight(s, "\x00 "), time.Local)
}
