// Package storage provides the filesystem side of the engine: output file
// allocation and photo stream access.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/Skryldev/photo-affix/errors"
)

// FilePrefix and TimeLayout make up the output file name:
// AFFIX_20060102_150405.<ext>.
const (
	FilePrefix = "AFFIX_"
	TimeLayout = "20060102_150405"
)

// ContentOpener resolves content:// references, which have no filesystem
// path of their own.
type ContentOpener func(ctx context.Context, uri string) (io.ReadCloser, error)

// Local is a core.IoManager on the local filesystem.  Outputs are written to
// rootDir/appName.
type Local struct {
	dir         string
	permissions os.FileMode
	now         func() time.Time
	content     ContentOpener
}

// Option configures a Local.
type Option func(*Local)

// WithClock replaces time.Now for file naming.
func WithClock(now func() time.Time) Option { return func(l *Local) { l.now = now } }

// WithContentOpener enables content:// references.
func WithContentOpener(o ContentOpener) Option { return func(l *Local) { l.content = o } }

// NewLocal creates a Local adapter writing under rootDir/appName.
func NewLocal(rootDir, appName string, perm os.FileMode, opts ...Option) (*Local, error) {
	if perm == 0 {
		perm = 0o755
	}
	dir := filepath.Join(rootDir, filepath.Clean(appName))
	if err := os.MkdirAll(dir, perm); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	l := &Local{dir: dir, permissions: perm, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Dir returns the output directory.
func (l *Local) Dir() string { return l.dir }

// MakeTempFile creates AFFIX_<timestamp><ext> in the output directory.  A
// second file in the same second gets a numeric suffix.
func (l *Local) MakeTempFile(ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := FilePrefix + l.now().Format(TimeLayout)

	for i := 0; i < 100; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(l.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.CategoryStorage, "local.tempfile", err)
		}
		if err := f.Close(); err != nil {
			return "", apperrors.Wrap(apperrors.CategoryStorage, "local.tempfile", err)
		}
		return path, nil
	}
	return "", apperrors.New(apperrors.CategoryStorage, "local.tempfile",
		fmt.Errorf("%s%s: too many files in the same second", base, ext))
}

// OpenStream opens file:// URIs and bare paths directly and hands content://
// URIs to the configured ContentOpener.
func (l *Local) OpenStream(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.open", err)
	}

	switch {
	case strings.HasPrefix(uri, "content://"):
		if l.content == nil {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.open",
				fmt.Errorf("%s: %w", uri, apperrors.ErrUnsupportedScheme))
		}
		return l.content(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		uri = strings.TrimPrefix(uri, "file://")
	case strings.Contains(uri, "://"):
		return nil, apperrors.New(apperrors.CategoryStorage, "local.open",
			fmt.Errorf("%s: %w", uri, apperrors.ErrUnsupportedScheme))
	}

	f, err := os.Open(uri)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.open", fmt.Errorf("photo not found: %s", uri))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.open", err)
	}
	return f, nil
}

// Remove deletes path, ignoring a missing file.
func (l *Local) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	return nil
}
