package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
)

const (
	defaultBuffer        = 256
	defaultPruneInterval = time.Hour
	writeTimeout         = 5 * time.Second
)

// Subscriber is the change source, normally *accessory.Accessory.
type Subscriber interface {
	Subscribe(fn accessory.Listener) (unsubscribe func())
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Retention is how long entries are kept. Zero disables pruning.
	Retention time.Duration

	// PruneInterval is how often old entries are deleted.
	PruneInterval time.Duration

	// Buffer is the number of changes queued before new ones are dropped.
	Buffer int

	Logger *logging.Logger
}

// Recorder writes every characteristic change to a Repository.
//
// Listeners run on the controller's refresh goroutine, so changes are queued
// and written by a separate goroutine. When the queue is full the change is
// dropped and counted rather than stalling the refresh.
type Recorder struct {
	repo   Repository
	opts   RecorderOptions
	logger *logging.Logger

	queue       chan accessory.Change
	dropped     atomic.Uint64
	recorded    atomic.Uint64
	unsubscribe func()

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// NewRecorder returns a stopped recorder.
func NewRecorder(repo Repository, opts RecorderOptions) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = defaultPruneInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		repo:   repo,
		opts:   opts,
		logger: logger.With("component", "history"),
		queue:  make(chan accessory.Change, opts.Buffer),
		done:   make(chan struct{}),
	}
}

// Start subscribes to src and begins writing. Call Stop to finish.
func (r *Recorder) Start(ctx context.Context, src Subscriber) {
	r.unsubscribe = src.Subscribe(r.enqueue)

	r.wg.Add(1)
	go r.writeLoop(ctx)

	if r.opts.Retention > 0 {
		r.wg.Add(1)
		go r.pruneLoop(ctx)
	}
}

// Stop unsubscribes, writes whatever is queued and waits for the goroutines.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		close(r.done)
		r.wg.Wait()
	})
}

// Dropped returns how many changes were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Recorded returns how many changes were written.
func (r *Recorder) Recorded() uint64 { return r.recorded.Load() }

func (r *Recorder) enqueue(c accessory.Change) {
	select {
	case r.queue <- c:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("history queue full, dropping changes")
		}
	}
}

func (r *Recorder) writeLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case c := <-r.queue:
			r.write(c)
		case <-ctx.Done():
			r.drain()
			return
		case <-r.done:
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case c := <-r.queue:
			r.write(c)
		default:
			return
		}
	}
}

func (r *Recorder) write(c accessory.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.Record(ctx, Entry{
		CharacteristicID: c.CharacteristicID,
		ServiceID:        c.ServiceID,
		Value:            c.New,
		RecordedAt:       c.At,
	})
	if err != nil {
		r.logger.Error("recording history failed", "characteristic", c.CharacteristicID, "error", err)
		return
	}
	r.recorded.Add(1)
}

func (r *Recorder) pruneLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.prune(ctx)
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	n, err := r.repo.Prune(ctx, r.opts.Retention)
	if err != nil {
		r.logger.Error("pruning history failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("pruned history", "deleted", n)
	}
}
