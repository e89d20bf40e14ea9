package sync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bakehouse/internal/blob"
	"bakehouse/pkg/domain"
)

// Defaults for the flush triggers.
const (
	DefaultDebounce = 5 * time.Second
	DefaultInterval = 30 * time.Second
)

// Options configures the flush engine.
type Options struct {
	UserID   string
	Debounce time.Duration // quiet period after the last change
	Interval time.Duration // wall-clock retry interval
}

// Engine runs the background flush loop. A burst of changes is flushed once
// the debounce window goes quiet; the interval ticker guarantees eventual
// retry after failures. The loop is a single goroutine, so at most one flush
// is in flight and changes landing during a flush wait for the next cycle.
type Engine struct {
	tracker *Tracker
	pusher  Pusher
	archive *blob.Archive
	log     *logrus.Entry
	opts    Options
	now     func() time.Time

	notify chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs a flush engine. The archive is optional.
func NewEngine(tracker *Tracker, pusher Pusher, archive *blob.Archive, log *logrus.Logger, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		tracker: tracker,
		pusher:  pusher,
		archive: archive,
		log:     log.WithField("component", "sync"),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		notify:  make(chan struct{}, 1),
	}
}

// Tracker returns the engine's change tracker.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Record feeds a committed change set into the tracker and pokes the
// debounce timer. Wired to the core change broadcaster.
func (e *Engine) Record(changes []domain.Change) {
	e.tracker.Record(changes)
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Start launches the background flush loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.run(ctx)
}

// Stop terminates the loop after attempting one final flush of anything
// still pending.
func (e *Engine) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.tracker.Dirty() {
		if err := e.Flush(ctx); err != nil {
			e.log.WithError(err).Warn("final flush failed; changes remain queued")
		}
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	debounce := time.NewTimer(e.opts.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.notify:
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(e.opts.Debounce)
		case <-debounce.C:
			if err := e.Flush(ctx); err != nil {
				e.log.WithError(err).Warn("debounced flush failed; will retry on interval")
			}
		case <-ticker.C:
			if !e.tracker.Dirty() {
				continue
			}
			if err := e.Flush(ctx); err != nil {
				e.log.WithError(err).Warn("interval flush failed; will retry")
			}
		}
	}
}

// Flush drains the tracker and pushes one payload. On failure the payload is
// requeued untouched; there is no backoff, the interval ticker retries.
func (e *Engine) Flush(ctx context.Context) error {
	payload := e.tracker.Drain(e.opts.UserID, e.now())
	if payload.Empty() {
		return nil
	}
	flushAttempts.Inc()
	started := time.Now()
	err := e.pusher.Push(ctx, payload)
	flushDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		flushFailures.Inc()
		e.tracker.Requeue(payload)
		return err
	}
	flushedRecords.Add(float64(payload.Records()))
	if e.archive != nil {
		if key, err := e.archive.Save(ctx, payload, payload.Timestamp); err != nil {
			e.log.WithError(err).Warn("payload archive failed")
		} else {
			e.log.WithField("key", key).Debug("payload archived")
		}
	}
	e.log.WithField("records", payload.Records()).Debug("flush complete")
	return nil
}
