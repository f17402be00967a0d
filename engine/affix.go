package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// State is the position of an AffixEngine in its process/commit cycle.
type State int32

const (
	StateIdle State = iota
	StateSizing
	StateAwaitingConfirmation
	StateStitching
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSizing:
		return "sizing"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateStitching:
		return "stitching"
	case StateCommitted:
		return "committed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stage names reported to hooks.
const (
	StageSizing = "sizing"
	StageStitch = "stitch"
	StageEncode = "encode"
	StageScan   = "scan"
)

// AffixEngine drives one photo set from sizing to a written file.  Process
// and Commit must not be called concurrently; State may be read from any
// goroutine.
type AffixEngine struct {
	m       core.BitmapManipulator
	io      core.IoManager
	dims    *DimensionsEngine
	stitch  *StitchEngine
	scanner core.MediaScanner
	hooks   []core.Hook
	logger  core.Logger

	state atomic.Int32
	it    *BitmapIterator
}

// NewAffixEngine wires the sizing and stitch engines around m.
func NewAffixEngine(prefs config.Preferences, dp core.DpConverter, m core.BitmapManipulator, io core.IoManager, opts ...Option) *AffixEngine {
	o := buildOptions(opts)
	return &AffixEngine{
		m:       m,
		io:      io,
		dims:    NewDimensionsEngine(prefs, dp, opts...),
		stitch:  NewStitchEngine(prefs, dp, m, opts...),
		scanner: o.scan,
		hooks:   o.hooks,
		logger:  o.logger,
	}
}

// State returns the current state.
func (e *AffixEngine) State() State { return State(e.state.Load()) }

func (e *AffixEngine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.logger.Debug("affix.state", "from", prev.String(), "to", s.String())
	}
}

// Iterator returns the iterator of the current cycle, or nil.
func (e *AffixEngine) Iterator() *BitmapIterator { return e.it }

// Process starts a new cycle for photos and computes the output size.  A
// usable size moves the engine to StateAwaitingConfirmation; an error or a
// zero size leaves it idle.
func (e *AffixEngine) Process(ctx context.Context, photos []core.Photo) core.SizingResult {
	e.it = NewBitmapIterator(photos, e.m)
	e.setState(StateSizing)

	e.before(ctx, StageSizing, len(photos))
	start := time.Now()
	res := e.dims.CalculateSize(ctx, e.it)
	e.after(ctx, StageSizing, len(photos), time.Since(start), res.Err)

	if !res.HasSize() {
		e.setState(StateIdle)
		return res
	}
	e.setState(StateAwaitingConfirmation)
	return res
}

// Commit stitches the pending photo set at the confirmed size and writes it
// in format.  It panics with *errors.ContractError unless a Process call
// left the engine awaiting confirmation.  On failure the engine stays
// awaiting confirmation so the caller may retry, e.g. at a smaller scale.
func (e *AffixEngine) Commit(ctx context.Context, scale float64, width, height int, format core.Format, quality int) core.CommitResult {
	if e.it == nil || e.State() != StateAwaitingConfirmation {
		apperrors.Violation("affix.commit", "Process must succeed before Commit")
	}
	if format != core.FormatPNG && format != core.FormatJPEG {
		return core.CommitResult{Err: apperrors.New(apperrors.CategoryInput, "affix.commit",
			fmt.Errorf("%s: %w", format, apperrors.ErrUnsupportedFormat))}
	}

	photos := e.it.Size()
	e.setState(StateStitching)

	e.before(ctx, StageStitch, photos)
	start := time.Now()
	res := e.stitch.Stitch(ctx, e.it, scale, width, height, format, quality)
	e.after(ctx, StageStitch, res.Processed, time.Since(start), res.Err)
	defer func() {
		if err := res.Recycle(); err != nil {
			e.logger.Warn("affix.recycle.failed", "error", err.Error())
		}
	}()

	if res.None() {
		// A stitch that fails mid-stream reports zero progress; the cause
		// stays reachable through the error chain.
		e.setState(StateAwaitingConfirmation)
		err := apperrors.ErrNothingProcessed
		if res.Err != nil {
			err = fmt.Errorf("%w: %w", apperrors.ErrNothingProcessed, res.Err)
		}
		return core.CommitResult{
			Err:   apperrors.Wrap(apperrors.CategoryDecode, "affix.commit", err),
			Cause: res.Err,
		}
	}

	path, err := e.write(ctx, res)
	if err != nil {
		e.setState(StateAwaitingConfirmation)
		return core.CommitResult{Err: err}
	}

	uri := e.scan(ctx, path, res.Format, res.Processed)
	e.setState(StateCommitted)
	e.logger.Info("affix.committed", "path", path, "uri", uri, "photos", res.Processed)
	return core.CommitResult{OutputPath: path, URI: uri}
}

// write encodes res into a fresh output file and removes the file again if
// encoding fails.
func (e *AffixEngine) write(ctx context.Context, res core.ProcessingResult) (path string, err error) {
	e.before(ctx, StageEncode, res.Processed)
	start := time.Now()
	defer func() { e.after(ctx, StageEncode, res.Processed, time.Since(start), err) }()

	path, err = e.io.MakeTempFile(res.Format.Extension())
	if err != nil {
		return "", err
	}
	if err = e.m.EncodeBitmap(ctx, res.Output, res.Format, res.Quality, path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("affix.cleanup.failed", "path", path, "error", rmErr.Error())
		}
		return "", err
	}
	return path, nil
}

// scan registers path with the media scanner.  A scanner failure is not
// fatal; the file URI is used instead.
func (e *AffixEngine) scan(ctx context.Context, path string, format core.Format, photos int) string {
	fallback := core.DefaultURIResolver(path)
	if e.scanner == nil {
		return fallback
	}
	e.before(ctx, StageScan, photos)
	start := time.Now()
	uri, err := e.scanner.Scan(ctx, path, format)
	e.after(ctx, StageScan, photos, time.Since(start), err)
	if err != nil {
		e.logger.Warn("affix.scan.failed", "path", path, "error", err.Error())
		return fallback
	}
	return uri
}

// Reset rewinds the iterator and returns to StateIdle.  It is idempotent.
func (e *AffixEngine) Reset() {
	if e.it != nil {
		e.it.Reset()
	}
	e.setState(StateIdle)
}

func (e *AffixEngine) before(ctx context.Context, stage string, photos int) {
	for _, h := range e.hooks {
		h.BeforeStage(ctx, stage, photos)
	}
}

func (e *AffixEngine) after(ctx context.Context, stage string, photos int, d time.Duration, err error) {
	for _, h := range e.hooks {
		h.AfterStage(ctx, stage, photos, d, err)
	}
}
