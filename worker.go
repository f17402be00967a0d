package photoaffix

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// JobKind tells the worker which engine call a job performs.
type JobKind int

const (
	JobProcess JobKind = iota
	JobCommit
	JobReset
)

func (k JobKind) String() string {
	switch k {
	case JobProcess:
		return "process"
	case JobCommit:
		return "commit"
	case JobReset:
		return "reset"
	}
	return fmt.Sprintf("job(%d)", int(k))
}

// JobResult is delivered on a Ticket once its job has run.
type JobResult struct {
	JobID  string
	Kind   JobKind
	Sizing core.SizingResult // JobProcess
	Commit core.CommitResult // JobCommit
	Err    error
}

// Ticket identifies a queued job.  Result receives exactly one value.
type Ticket struct {
	ID     string
	Result <-chan JobResult
}

type job struct {
	id   string
	ctx  context.Context
	kind JobKind

	photos []core.Photo

	scale         float64
	width, height int
	format        core.Format
	quality       int

	owner EngineOwner
	done  chan JobResult
}

// submit enqueues j.  Returns ErrWorkerPoolFull if the queue is full.
func (a *Affixer) submit(j job) (Ticket, error) {
	if !a.running() {
		return Ticket{}, apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrNotStarted)
	}

	j.id = uuid.NewString()
	j.done = make(chan JobResult, 1)
	if j.ctx == nil {
		j.ctx = context.Background()
	}
	// Record before enqueueing so the worker's result update cannot land
	// ahead of the insert.
	record := j.kind != JobReset
	if record {
		if err := a.index.RecordJobQueued(j.ctx, j.id, j.kind.String(), len(j.photos)); err != nil {
			a.logger.Warn("affix.job.record", "job", j.id, "error", err.Error())
		}
	}

	// Stop flips started under a.mu, so a job is either queued before the
	// shutdown drain or rejected here.
	var err error
	a.mu.Lock()
	switch {
	case !a.started:
		err = apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrNotStarted)
	default:
		select {
		case a.jobQueue <- j:
		default:
			err = apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrWorkerPoolFull)
		}
	}
	a.mu.Unlock()

	if err != nil {
		if record {
			a.recordResult(j.id, "rejected", "", err.Error())
		}
		return Ticket{}, err
	}
	return Ticket{ID: j.id, Result: j.done}, nil
}

func (a *Affixer) running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// drainQueue fails every job still queued after the worker exited.
func (a *Affixer) drainQueue() {
	for {
		select {
		case j := <-a.jobQueue:
			err := apperrors.New(apperrors.CategoryInput, "stop", apperrors.ErrStopped)
			if j.kind != JobReset {
				a.recordResult(j.id, "cancelled", "", err.Error())
			}
			j.done <- JobResult{JobID: j.id, Kind: j.kind, Err: err}
		default:
			return
		}
	}
}

func (a *Affixer) recordResult(id, status, output, msg string) {
	// A cancelled job context must not prevent the record.
	if err := a.index.RecordJobResult(context.Background(), id, status, output, msg); err != nil {
		a.logger.Warn("affix.job.record", "job", id, "error", err.Error())
	}
}

// ── worker internals ──────────────────────────────────────────────────────────

func (a *Affixer) worker() {
	defer a.wg.Done()
	for {
		// Shutdown wins over queued work; drainQueue answers the rest.
		select {
		case <-a.shutdown:
			return
		default:
		}
		select {
		case <-a.shutdown:
			return
		case j := <-a.jobQueue:
			a.runJob(j)
		}
	}
}

func (a *Affixer) runJob(j job) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if a.cfg.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(j.ctx, a.cfg.JobTimeout)
	} else {
		ctx, cancel = context.WithCancel(j.ctx)
	}
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
		cancel()
	}()

	res := JobResult{JobID: j.id, Kind: j.kind}
	func() {
		defer func() {
			if r := recover(); r != nil {
				var ce *apperrors.ContractError
				if err, ok := r.(error); ok && errors.As(err, &ce) {
					res.Err = ce
					return
				}
				panic(r)
			}
		}()
		switch j.kind {
		case JobProcess:
			res.Sizing = a.runProcess(ctx, j)
			res.Err = res.Sizing.Err
		case JobCommit:
			res.Commit = a.runCommit(ctx, j)
			res.Err = res.Commit.Err
		case JobReset:
			a.engine.Reset()
		}
	}()

	if j.kind != JobReset {
		a.finish(j, res)
	}
	j.done <- res
}

func (a *Affixer) runProcess(ctx context.Context, j job) core.SizingResult {
	a.notify(j.owner, func(o EngineOwner) { o.ShowContentLoading(true) })
	res := a.engine.Process(ctx, j.photos)
	a.notify(j.owner, func(o EngineOwner) { o.ShowContentLoading(false) })

	switch {
	case res.Err != nil:
		a.reportError(j.owner, res.Err)
	case !res.Size.IsZero():
		size := res.Size
		a.notify(j.owner, func(o EngineOwner) { o.ShowImageSizingDialog(size.Width, size.Height) })
	}
	return res
}

func (a *Affixer) runCommit(ctx context.Context, j job) core.CommitResult {
	if a.engine.State() != engine.StateAwaitingConfirmation {
		err := apperrors.New(apperrors.CategoryInput, "confirm", apperrors.ErrNotReady)
		a.reportError(j.owner, err)
		return core.CommitResult{Err: err}
	}

	a.notify(j.owner, func(o EngineOwner) { o.ShowContentLoading(true) })
	res := a.engine.Commit(ctx, j.scale, j.width, j.height, j.format, j.quality)
	a.notify(j.owner, func(o EngineOwner) { o.ShowContentLoading(false) })

	switch {
	case res.NothingProcessed() && res.Cause == nil:
		a.logger.Info("affix.commit.nothing_processed", "job", j.id)
	case res.Err != nil:
		a.reportError(j.owner, res.Err)
	default:
		if a.metrics != nil {
			a.metrics.RecordPixels(int64(j.width) * int64(j.height))
		}
		uri := res.URI
		a.notify(j.owner, func(o EngineOwner) {
			o.OnDoneProcessing()
			o.LaunchViewer(uri)
		})
	}
	return res
}

func (a *Affixer) reportError(owner EngineOwner, err error) {
	if apperrors.IsLowMemory(err) {
		a.notify(owner, func(o EngineOwner) { o.ShowMemoryError() })
		return
	}
	a.notify(owner, func(o EngineOwner) { o.ShowErrorDialog(err) })
}

func (a *Affixer) notify(owner EngineOwner, fn func(EngineOwner)) {
	if owner == nil {
		return
	}
	a.dispatch(func() { fn(owner) })
}

func (a *Affixer) finish(j job, res JobResult) {
	status := "done"
	msg := ""
	if res.Err != nil {
		atomic.AddInt64(&a.errorCount, 1)
		status, msg = "failed", res.Err.Error()
		if res.Commit.NothingProcessed() {
			status = "empty"
		}
	} else {
		atomic.AddInt64(&a.processedCount, 1)
	}
	a.recordResult(j.id, status, res.Commit.OutputPath, msg)
	a.logger.Debug("affix.job.finished", "job", j.id, "kind", j.kind.String(), "status", status)
}

func (a *Affixer) loadCounts() (int64, int64) {
	return atomic.LoadInt64(&a.processedCount), atomic.LoadInt64(&a.errorCount)
}
