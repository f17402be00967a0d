package gallery_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/Skryldev/photo-affix/adapters/gallery"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not really an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"dir/b.png", true},
		{"c.webp", true},
		{"d.tif", true},
		{"e.bmp", true},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tc := range tests {
		if got := gallery.IsImage(tc.path); got != tc.want {
			t.Errorf("IsImage(%q) = %v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestLoad_NewestFirst(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(root, "a.jpg"), base)
	touch(t, filepath.Join(root, "b.png"), base.Add(2*time.Hour))
	touch(t, filepath.Join(root, "nested", "c.jpg"), base.Add(time.Hour))
	touch(t, filepath.Join(root, "readme.txt"), base.Add(3*time.Hour))

	photos, err := gallery.NewLoader(nil).Load(context.Background(), root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"b.png", "c.jpg", "a.jpg"}
	if len(photos) != len(want) {
		t.Fatalf("got %d photos; want %d", len(photos), len(want))
	}
	for i, p := range photos {
		if filepath.Base(p.Data()) != want[i] {
			t.Errorf("photo %d: got %s; want %s", i, filepath.Base(p.Data()), want[i])
		}
		if p.URI() != "file://"+p.Data() {
			t.Errorf("photo %d: uri %s", i, p.URI())
		}
	}
	if photos[0].DateTaken() != base.Add(2*time.Hour).UnixMilli() {
		t.Errorf("date taken: got %d", photos[0].DateTaken())
	}
	// Ids follow walk order, not date order.
	if photos[0].ID() != 2 || photos[2].ID() != 1 {
		t.Errorf("ids: got %d..%d", photos[0].ID(), photos[2].ID())
	}
}

func TestLoad_Cancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gallery.NewLoader(nil).Load(ctx, root); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestPaths_KeepsOrder(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	a := filepath.Join(dir, "a.jpg")
	touch(t, a, mtime)
	missing := filepath.Join(dir, "missing.jpg")

	photos := gallery.NewLoader(nil).Paths([]string{missing, a})
	if len(photos) != 2 {
		t.Fatalf("got %d photos", len(photos))
	}
	if photos[0].Data() != missing || photos[1].Data() != a {
		t.Errorf("order changed: %v", photos)
	}
	if photos[0].DateTaken() != 0 || photos[1].DateTaken() != mtime.UnixMilli() {
		t.Errorf("date taken: got %d, %d", photos[0].DateTaken(), photos[1].DateTaken())
	}
	if photos[0].ID() != 1 || photos[1].ID() != 2 {
		t.Errorf("ids: got %d, %d", photos[0].ID(), photos[1].ID())
	}
}

func TestExifDateTime_NoExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	touch(t, path, time.Now())
	if _, err := gallery.ExifDateTime(path); err == nil {
		t.Error("expected error for a file without EXIF")
	}
}

// writeExif writes a bare EXIF block carrying the given root DateTime and
// Exif DateTimeOriginal.  Empty values are left out.
func writeExif(t *testing.T, path, dateTime, original string) {
	t.Helper()
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		t.Fatal(err)
	}
	ti := exif.NewTagIndex()
	root := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, binary.BigEndian)
	if dateTime != "" {
		if err := root.AddStandardWithName("DateTime", dateTime); err != nil {
			t.Fatal(err)
		}
	}
	if original != "" {
		child := exif.NewIfdBuilder(im, ti, exifcommon.IfdExifStandardIfdIdentity, binary.BigEndian)
		if err := child.AddStandardWithName("DateTimeOriginal", original); err != nil {
			t.Fatal(err)
		}
		if err := root.AddChildIb(child); err != nil {
			t.Fatal(err)
		}
	}
	data, err := exif.NewIfdByteEncoder().EncodeToExif(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExifDateTime_PrefersOriginal(t *testing.T) {
	tests := []struct {
		name     string
		dateTime string
		original string
		want     string
	}{
		{"both tags", "2021:03:04 05:06:07", "2019:06:15 12:30:00", "2019:06:15 12:30:00"},
		{"original only", "", "2018:01:02 03:04:05", "2018:01:02 03:04:05"},
		{"modified only", "2021:03:04 05:06:07", "", "2021:03:04 05:06:07"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "photo.jpg")
			writeExif(t, path, tc.dateTime, tc.original)

			got, err := gallery.ExifDateTime(path)
			if err != nil {
				t.Fatalf("ExifDateTime: %v", err)
			}
			want, _ := time.ParseInLocation("2006:01:02 15:04:05", tc.want, time.Local)
			if !got.Equal(want) {
				t.Errorf("got %v; want %v", got, want)
			}
		})
	}
}
