package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

const (
	defaultChunk = 32 * 1024
	// Buffers that grew past this after a large photo are left to the GC.
	maxPooledCap = 8 << 20
)

// sourcePool holds the byte buffers photo sources are drained into before
// decoding.  Each decode borrows one for the lifetime of the pixel copy.
var sourcePool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// AcquireBuffer borrows an empty buffer from the source pool.
func AcquireBuffer() *bytes.Buffer {
	b := sourcePool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer hands b back.  b must not be touched afterwards.
func ReleaseBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledCap {
		return
	}
	sourcePool.Put(b)
}

// DrainReader copies r into a pooled buffer, chunk bytes at a time, checking
// ctx between chunks so a cancelled job stops reading a large photo early.
// On success the buffer belongs to the caller until ReleaseBuffer.
func DrainReader(ctx context.Context, r io.Reader, chunk int) (*bytes.Buffer, error) {
	if chunk <= 0 {
		chunk = defaultChunk
	}
	buf := AcquireBuffer()
	buf.Grow(chunk)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		_, err := io.CopyN(buf, r, int64(chunk))
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return buf, nil
		default:
			ReleaseBuffer(buf)
			return nil, err
		}
	}
}

// ErrTooLarge is returned by LimitedReader once the source holds more than
// Max bytes.
var ErrTooLarge = errors.New("input exceeds the size limit")

// LimitedReader wraps R and fails with ErrTooLarge when it holds more than
// Max bytes.  A source of exactly Max bytes reads to EOF.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.n >= l.Max && l.Max > 0 {
		var probe [1]byte
		n, err := l.R.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if l.Max > 0 {
		remain := l.Max - l.n
		if int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}
