package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
)

const (
	// defaultBuffer is the recorder queue size when none is given.
	defaultBuffer = 128

	// pruneEvery is the number of writes between retention passes.
	pruneEvery = 100

	// writeTimeout bounds a single journal write.
	writeTimeout = 2 * time.Second
)

// Logger is the logging interface used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is a connectivity.Observer that writes supervisor events to the
// journal. ObserveEvent only queues; Run does the writes on its own
// goroutine so the control loop never waits on SQLite.
type Recorder struct {
	repo      Repository
	retention int
	logger    Logger
	queue     chan Entry
	dropped   atomic.Uint64
}

// NewRecorder creates a recorder keeping at most retention entries
// (0 keeps everything).
func NewRecorder(repo Repository, retention, buffer int, logger Logger) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:      repo,
		retention: retention,
		logger:    logger,
		queue:     make(chan Entry, buffer),
	}
}

// ObserveEvent implements connectivity.Observer.
func (r *Recorder) ObserveEvent(ev connectivity.Event) {
	r.enqueue(Entry{
		Kind:       string(ev.Kind),
		Layer:      string(ev.Layer),
		State:      ev.State.String(),
		Attempt:    ev.Attempt,
		Outcome:    ev.Outcome.String(),
		OccurredAt: ev.At,
	})
}

// RecordBoot queues a start-up record.
func (r *Recorder) RecordBoot(details map[string]any) {
	r.enqueue(Entry{
		Kind:       KindBoot,
		Details:    details,
		OccurredAt: time.Now().UTC(),
	})
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(e Entry) {
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left in the queue.
func (r *Recorder) Run(ctx context.Context) {
	written := 0
	for {
		select {
		case e := <-r.queue:
			r.write(context.WithoutCancel(ctx), e)
			written++
			if written%pruneEvery == 0 {
				r.prune(context.WithoutCancel(ctx))
			}
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("journal write failed", "kind", e.Kind, "error", err)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	n, err := r.repo.Prune(ctx, r.retention)
	if err != nil {
		r.logger.Warn("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("journal pruned", "removed", n, "retention", r.retention)
	}
}
