// Package photoaffix stitches photos side by side or top to bottom into a
// single image.
//
// An Affixer runs one job at a time on a background worker: Process sizes a
// photo set and reports the result to an EngineOwner, Confirm stitches it at
// the chosen scale and writes the file.
package photoaffix

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Skryldev/photo-affix/adapters/decoder"
	"github.com/Skryldev/photo-affix/adapters/encoder"
	"github.com/Skryldev/photo-affix/adapters/mediastore"
	"github.com/Skryldev/photo-affix/adapters/storage"
	"github.com/Skryldev/photo-affix/adapters/vips"
	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
	"github.com/Skryldev/photo-affix/hooks"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// EngineOwner receives progress, errors and results.  Calls arrive through
// the Affixer's Dispatcher.
type EngineOwner interface {
	ShowImageSizingDialog(width, height int)
	ShowContentLoading(loading bool)
	ShowErrorDialog(err error)
	ShowMemoryError()
	OnDoneProcessing()
	LaunchViewer(uri string)
}

// Dispatcher runs owner callbacks on the caller's context, e.g. a UI loop.
type Dispatcher func(fn func())

// Inline runs callbacks on the worker goroutine.
func Inline(fn func()) { fn() }

// Affixer is the primary entry point.
type Affixer struct {
	cfg      config.Config
	reg      *core.DefaultRegistry
	local    *storage.Local
	manip    *core.Manipulator
	engine   *engine.AffixEngine
	index    *mediastore.Index
	ownIndex bool
	vips     *vips.Backend

	logger   core.Logger
	metrics  core.MetricsCollector
	hooks    []core.Hook
	dispatch Dispatcher
	storeOpt []storage.Option

	// Single worker.
	jobQueue chan job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}
	started  bool

	mu     sync.Mutex
	cancel context.CancelFunc

	processedCount int64
	errorCount     int64
}

// Option configures an Affixer.
type Option func(*Affixer)

// WithLogger attaches a structured logger and logs every engine stage.
func WithLogger(l core.Logger) Option {
	return func(a *Affixer) {
		a.logger = l
		a.hooks = append(a.hooks, hooks.NewLoggingHook(l))
	}
}

// WithMetrics feeds engine stage timings into m.
func WithMetrics(m core.MetricsCollector) Option {
	return func(a *Affixer) {
		a.metrics = m
		a.hooks = append(a.hooks, hooks.NewMetricsHook(m))
	}
}

// WithHook registers an observer for engine stage events.
func WithHook(h core.Hook) Option { return func(a *Affixer) { a.hooks = append(a.hooks, h) } }

// WithDispatcher sets how owner callbacks are delivered.
func WithDispatcher(d Dispatcher) Option { return func(a *Affixer) { a.dispatch = d } }

// WithMediaIndex uses ix instead of opening cfg.MediaIndex.  The caller
// keeps ownership of ix.
func WithMediaIndex(ix *mediastore.Index) Option { return func(a *Affixer) { a.index = ix } }

// WithStorageOptions passes options to the output storage adapter.
func WithStorageOptions(opts ...storage.Option) Option {
	return func(a *Affixer) { a.storeOpt = append(a.storeOpt, opts...) }
}

// New creates a fully wired Affixer with the built-in codecs registered.
func New(cfg config.Config, opts ...Option) (*Affixer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a := &Affixer{
		cfg:      cfg,
		logger:   core.NopLogger{},
		dispatch: Inline,
		jobQueue: make(chan job, cfg.QueueSize),
		shutdown: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}

	if a.index == nil && cfg.MediaIndex != "" {
		ix, err := mediastore.Open(cfg.MediaIndex)
		if err != nil {
			return nil, err
		}
		a.index, a.ownIndex = ix, true
	}
	storeOpts := a.storeOpt
	if a.index != nil {
		storeOpts = append([]storage.Option{storage.WithContentOpener(a.index.OpenContent)}, storeOpts...)
	}
	local, err := storage.NewLocal(cfg.Output.Dir, cfg.Output.AppName, os.FileMode(cfg.Output.Permissions), storeOpts...)
	if err != nil {
		a.closeIndex()
		return nil, err
	}
	a.local = local

	a.reg = core.NewRegistry()
	decoder.RegisterAll(a.reg)
	encoder.RegisterAll(a.reg, cfg.DefaultQuality)
	if cfg.Backend == config.BackendVips {
		a.vips = vips.NewBackend(vips.BackendConfig{
			MaxCacheSize: cfg.Vips.MaxCacheSize,
			MaxWorkers:   cfg.Vips.ConcurrencyLevel,
			ReportLeaks:  cfg.Vips.ReportLeaks,
		})
		vips.RegisterVipsBackend(a.reg, a.vips)
	}

	a.logger.Debug("affix.codecs",
		"decode", a.reg.DecoderFormats(),
		"encode", a.reg.EncoderFormats(),
		"backend", string(cfg.Backend),
	)

	a.manip = core.NewManipulator(a.reg, a.local, core.Limits{
		MaxSourceBytes:  cfg.Limits.MaxSourceBytes,
		MaxRasterPixels: cfg.Limits.MaxRasterPixels,
	})
	a.manip.SetLogger(a.logger)

	engOpts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithCanvasCreator(engine.RasterCanvasCreator(cfg.Interpolation)),
	}
	for _, h := range a.hooks {
		engOpts = append(engOpts, engine.WithHook(h))
	}
	if a.index != nil {
		engOpts = append(engOpts, engine.WithMediaScanner(a.index))
	}
	a.engine = engine.NewAffixEngine(cfg.Preferences, core.Density(cfg.Density), a.manip, a.local, engOpts...)
	return a, nil
}

// Start launches the worker.  It is idempotent and does nothing after Stop.
func (a *Affixer) Start() {
	a.once.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		select {
		case <-a.shutdown:
			return
		default:
		}
		a.started = true
		a.wg.Add(1)
		go a.worker()
	})
}

// Stop shuts down the worker and releases the media index and libvips.
// The running job is cancelled; jobs still queued receive ErrStopped.
func (a *Affixer) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.started = false
		close(a.shutdown)
		a.mu.Unlock()
		a.cancelRunning()
		a.wg.Wait()
		a.drainQueue()
		a.closeIndex()
		if a.vips != nil {
			a.vips.Shutdown()
		}
	})
}

func (a *Affixer) closeIndex() {
	if a.ownIndex && a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("affix.index.close", "error", err.Error())
		}
	}
}

// Process queues a sizing job for photos.  owner is told the computed size
// or the error.
func (a *Affixer) Process(ctx context.Context, photos []core.Photo, owner EngineOwner) (Ticket, error) {
	return a.submit(job{ctx: ctx, kind: JobProcess, photos: photos, owner: owner})
}

// Confirm queues a commit of the photo set the last Process sized.
func (a *Affixer) Confirm(ctx context.Context, scale float64, width, height int, format core.Format, quality int, owner EngineOwner) (Ticket, error) {
	if scale <= 0 {
		return Ticket{}, fmt.Errorf("photoaffix: scale must be positive, got %v", scale)
	}
	return a.submit(job{
		ctx:     ctx,
		kind:    JobCommit,
		scale:   scale,
		width:   width,
		height:  height,
		format:  format,
		quality: quality,
		owner:   owner,
	})
}

// Cancel aborts the running job, if any, and queues an engine reset so the
// next job starts from idle.
func (a *Affixer) Cancel() {
	a.cancelRunning()
	if _, err := a.submit(job{ctx: context.Background(), kind: JobReset}); err != nil {
		a.logger.Debug("affix.cancel.reset_skipped", "error", err.Error())
	}
}

func (a *Affixer) cancelRunning() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()
}

// Stats returns lightweight job statistics.
func (a *Affixer) Stats() (processed, errors int64) {
	return a.loadCounts()
}
