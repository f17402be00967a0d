package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Skryldev/photo-affix/errors"
	"github.com/Skryldev/photo-affix/hooks"
)

func TestMetricsHook(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	hook := hooks.NewMetricsHook(m)
	ctx := context.Background()

	hook.AfterStage(ctx, "sizing", 3, 20*time.Millisecond, nil)
	hook.AfterStage(ctx, "stitch", 3, 40*time.Millisecond, nil)
	hook.AfterStage(ctx, "stitch", 2, 10*time.Millisecond,
		apperrors.Wrap(apperrors.CategoryDecode, "stitch", apperrors.ErrLowMemory))
	hook.AfterStage(ctx, "scan", 1, time.Millisecond, errors.New("plain"))

	snap := m.Snapshot()
	if snap.StageCalls["stitch"] != 2 || snap.StageCalls["sizing"] != 1 {
		t.Errorf("calls: %v", snap.StageCalls)
	}
	if snap.StageDurationsMs["stitch"] != 50 {
		t.Errorf("stitch ms: got %d; want 50", snap.StageDurationsMs["stitch"])
	}
	if snap.TotalPhotos != 3 {
		t.Errorf("photos: got %d; want 3 (failed stitches excluded)", snap.TotalPhotos)
	}
	if snap.StageErrors["stitch"] != 1 || snap.StageErrors["scan"] != 1 {
		t.Errorf("errors: %v", snap.StageErrors)
	}
	if snap.ErrorCategories["memory"] != 1 || snap.ErrorCategories["other"] != 1 {
		t.Errorf("categories: %v", snap.ErrorCategories)
	}
}

func TestInMemoryMetrics_Concurrent(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordPixels(100)
			m.RecordPhotos(1)
			m.RecordProcessingTime("encode", time.Millisecond)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.TotalPixels != 2000 || snap.TotalPhotos != 20 || snap.StageCalls["encode"] != 20 {
		t.Errorf("snapshot: %+v", snap)
	}
	// Snapshots are copies.
	snap.StageCalls["encode"] = 0
	if m.Snapshot().StageCalls["encode"] != 20 {
		t.Error("snapshot shares state with the collector")
	}
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	l := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	hook := hooks.NewLoggingHook(l.With("job", "j1"))

	hook.BeforeStage(context.Background(), "sizing", 2)
	hook.AfterStage(context.Background(), "sizing", 2, time.Millisecond, nil)
	hook.AfterStage(context.Background(), "encode", 2, time.Millisecond, errors.New("disk full"))

	out := buf.String()
	for _, want := range []string{
		"msg=affix.stage.start",
		"msg=affix.stage.done",
		"msg=affix.stage.error",
		"stage=encode",
		`error="disk full"`,
		"job=j1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
