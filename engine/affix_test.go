package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/photo-affix/adapters/storage"
	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

type stubScanner struct {
	uri   string
	err   error
	paths []string
}

func (s *stubScanner) Scan(_ context.Context, path string, _ core.Format) (string, error) {
	s.paths = append(s.paths, path)
	return s.uri, s.err
}

type stageRecorder struct {
	started []string
	failed  []string
}

func (r *stageRecorder) BeforeStage(_ context.Context, stage string, _ int) {
	r.started = append(r.started, stage)
}

func (r *stageRecorder) AfterStage(_ context.Context, stage string, _ int, _ time.Duration, err error) {
	if err != nil {
		r.failed = append(r.failed, stage)
	}
}

func newAffix(t *testing.T, f *fakeManipulator, opts ...engine.Option) (*engine.AffixEngine, *storage.Local) {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir(), "App", 0)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	canvas := &recordingCanvas{}
	opts = append([]engine.Option{engine.WithCanvasCreator(canvas.creator())}, opts...)
	prefs := config.Preferences{StackHorizontally: true, ScalePriority: true}
	return engine.NewAffixEngine(prefs, core.Density(1), f, local, opts...), local
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAffix_ProcessAndCommit(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 2, Height: 4}, core.Size{Width: 2, Height: 8})
	e, local := newAffix(t, f)

	if e.State() != engine.StateIdle {
		t.Fatalf("initial state: got %s", e.State())
	}
	sz := e.Process(context.Background(), ps)
	if sz.Err != nil {
		t.Fatalf("Process: %v", sz.Err)
	}
	if sz.Size != (core.Size{Width: 6, Height: 8}) {
		t.Fatalf("size: got %+v", sz.Size)
	}
	if e.State() != engine.StateAwaitingConfirmation {
		t.Fatalf("state after Process: got %s", e.State())
	}

	res := e.Commit(context.Background(), 1, sz.Size.Width, sz.Size.Height, core.FormatPNG, 100)
	if res.Err != nil {
		t.Fatalf("Commit: %v", res.Err)
	}
	if e.State() != engine.StateCommitted {
		t.Errorf("state after Commit: got %s", e.State())
	}
	if filepath.Dir(res.OutputPath) != local.Dir() {
		t.Errorf("output outside storage dir: %s", res.OutputPath)
	}
	base := filepath.Base(res.OutputPath)
	if !strings.HasPrefix(base, storage.FilePrefix) || filepath.Ext(base) != ".png" {
		t.Errorf("output name: got %s", base)
	}
	if res.URI != "file://"+res.OutputPath {
		t.Errorf("uri: got %s", res.URI)
	}
	if f.created == nil || !f.created.Recycled() {
		t.Error("output raster not released after commit")
	}
}

func TestAffix_CommitBeforeProcessPanics(t *testing.T) {
	e, _ := newAffix(t, newFake(nil))
	mustPanicContract(t, func() {
		e.Commit(context.Background(), 1, 10, 10, core.FormatPNG, 100)
	})
}

func TestAffix_CommitAfterFailedSizingPanics(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 2, Height: 2})
	f.boundsErr[ps[0].Data()] = errors.New("corrupt")
	e, _ := newAffix(t, f)

	if res := e.Process(context.Background(), ps); res.Err == nil {
		t.Fatal("Process: want error")
	}
	if e.State() != engine.StateIdle {
		t.Fatalf("state: got %s, want idle", e.State())
	}
	mustPanicContract(t, func() {
		e.Commit(context.Background(), 1, 2, 2, core.FormatPNG, 100)
	})
}

func TestAffix_EncodeFailureRemovesFile(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 3, Height: 3})
	f.encodeErr = apperrors.New(apperrors.CategoryEncode, "encode", errors.New("disk full"))
	e, local := newAffix(t, f)

	sz := e.Process(context.Background(), ps)
	res := e.Commit(context.Background(), 1, sz.Size.Width, sz.Size.Height, core.FormatJPEG, 90)
	if !apperrors.IsCategory(res.Err, apperrors.CategoryEncode) {
		t.Fatalf("got %v, want encode error", res.Err)
	}
	if f.encodedTo == "" {
		t.Fatal("encoder was never called")
	}
	if _, err := os.Stat(f.encodedTo); !os.IsNotExist(err) {
		t.Errorf("partial output left behind: %v", err)
	}
	if names := outputFiles(t, local.Dir()); len(names) != 0 {
		t.Errorf("output dir not empty: %v", names)
	}
	if e.State() != engine.StateAwaitingConfirmation {
		t.Errorf("state: got %s, want awaiting_confirmation", e.State())
	}
}

func TestAffix_StitchFailureIsNothingProcessed(t *testing.T) {
	boom := errors.New("truncated")
	ps, f := sizedPhotos(core.Size{Width: 3, Height: 3}, core.Size{Width: 3, Height: 3})
	f.pixelsErr[ps[1].Data()] = boom
	e, local := newAffix(t, f)

	sz := e.Process(context.Background(), ps)
	res := e.Commit(context.Background(), 1, sz.Size.Width, sz.Size.Height, core.FormatPNG, 100)
	if !res.NothingProcessed() {
		t.Fatalf("got %v, want nothing processed", res.Err)
	}
	if !errors.Is(res.Err, boom) || !errors.Is(res.Cause, boom) {
		t.Errorf("cause lost: err=%v cause=%v", res.Err, res.Cause)
	}
	if f.encodedTo != "" {
		t.Error("encoder called after a failed stitch")
	}
	if names := outputFiles(t, local.Dir()); len(names) != 0 {
		t.Errorf("output dir not empty: %v", names)
	}

	// The set stays pending and may be retried once the photo is readable.
	delete(f.pixelsErr, ps[1].Data())
	if res := e.Commit(context.Background(), 1, sz.Size.Width, sz.Size.Height, core.FormatPNG, 100); res.Err != nil {
		t.Fatalf("retry: %v", res.Err)
	}
}

func TestAffix_UnsupportedOutputFormat(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 3, Height: 3})
	e, _ := newAffix(t, f)

	e.Process(context.Background(), ps)
	res := e.Commit(context.Background(), 1, 3, 3, core.FormatWebP, 90)
	if !errors.Is(res.Err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("got %v, want ErrUnsupportedFormat", res.Err)
	}
	if f.pixelCalls != 0 {
		t.Errorf("decoded %d photos for a rejected format", f.pixelCalls)
	}
}

func TestAffix_MediaScanner(t *testing.T) {
	tests := []struct {
		name    string
		scanner *stubScanner
		wantURI func(path string) string
	}{
		{"scanned", &stubScanner{uri: "content://media/7"},
			func(string) string { return "content://media/7" }},
		{"scan failure falls back to file uri", &stubScanner{err: errors.New("index locked")},
			func(p string) string { return "file://" + p }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ps, f := sizedPhotos(core.Size{Width: 3, Height: 3})
			e, _ := newAffix(t, f, engine.WithMediaScanner(tc.scanner))

			e.Process(context.Background(), ps)
			res := e.Commit(context.Background(), 1, 3, 3, core.FormatPNG, 100)
			if res.Err != nil {
				t.Fatalf("Commit: %v", res.Err)
			}
			if len(tc.scanner.paths) != 1 || tc.scanner.paths[0] != res.OutputPath {
				t.Errorf("scanned paths: got %v", tc.scanner.paths)
			}
			if want := tc.wantURI(res.OutputPath); res.URI != want {
				t.Errorf("uri: got %s, want %s", res.URI, want)
			}
		})
	}
}

func TestAffix_HooksSeeEveryStage(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 3, Height: 3})
	rec := &stageRecorder{}
	e, _ := newAffix(t, f, engine.WithHook(rec), engine.WithMediaScanner(&stubScanner{uri: "content://media/1"}))

	e.Process(context.Background(), ps)
	e.Commit(context.Background(), 1, 3, 3, core.FormatPNG, 100)

	want := []string{engine.StageSizing, engine.StageStitch, engine.StageEncode, engine.StageScan}
	if strings.Join(rec.started, ",") != strings.Join(want, ",") {
		t.Errorf("stages: got %v, want %v", rec.started, want)
	}
	if len(rec.failed) != 0 {
		t.Errorf("failed stages: %v", rec.failed)
	}
}

func TestAffix_ResetIsIdempotent(t *testing.T) {
	ps, f := sizedPhotos(core.Size{Width: 3, Height: 3})
	e, _ := newAffix(t, f)

	e.Reset()
	e.Process(context.Background(), ps)
	e.Reset()
	e.Reset()
	if e.State() != engine.StateIdle {
		t.Errorf("state: got %s, want idle", e.State())
	}
	if e.Iterator().Index() != -1 {
		t.Errorf("iterator index: got %d", e.Iterator().Index())
	}
	mustPanicContract(t, func() {
		e.Commit(context.Background(), 1, 3, 3, core.FormatPNG, 100)
	})
}

func TestAffix_EmptySetStaysIdle(t *testing.T) {
	e, _ := newAffix(t, newFake(nil))
	res := e.Process(context.Background(), nil)
	if res.Err != nil || !res.Size.IsZero() {
		t.Fatalf("got %+v, want zero size", res)
	}
	if e.State() != engine.StateIdle {
		t.Errorf("state: got %s", e.State())
	}
}
