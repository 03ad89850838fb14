// Package scheduler bridges the host's synchronous callback threads to the
// asynchronous delivery path. One bounded worker pool is shared by every
// signal adapter; submission never blocks the caller beyond a short enqueue.
package scheduler

import (
	"context"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/pkg/errors"
)

// Task is a unit of delivery work.
type Task func()

// Defaults applied when options are zero.
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 256
)

// Scheduler owns the shared worker pool. Tasks submitted with the same lane
// key execute in submission order: each lane maps to a fixed worker, and each
// worker drains its own FIFO queue. Cross-lane interleaving is unspecified.
type Scheduler struct {
	workerCount int
	queueSize   int
	logger      *zerolog.Logger

	mu      sync.Mutex
	queues  []chan Task
	wg      sync.WaitGroup
	started bool
	stopped atomic.Bool

	submitted atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	panicked  atomic.Uint64
	abandoned atomic.Uint64
}

// Options configures a Scheduler.
type Options struct {
	// WorkerCount is the number of pool workers (default 4).
	WorkerCount int

	// QueueSize bounds each worker's pending queue (default 256). When a
	// queue is full the oldest queued task is dropped to admit the new one.
	QueueSize int

	Logger *zerolog.Logger
}

// New creates a scheduler. Workers start lazily on first Submit.
func New(opts Options) *Scheduler {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = DefaultWorkerCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Scheduler{
		workerCount: opts.WorkerCount,
		queueSize:   opts.QueueSize,
		logger:      logger,
	}
}

// Start creates the worker pool. It is safe to call more than once; Submit
// calls it implicitly.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	if s.started {
		return
	}
	s.started = true

	s.queues = make([]chan Task, s.workerCount)
	for i := range s.queues {
		s.queues[i] = make(chan Task, s.queueSize)
		s.wg.Add(1)
		go s.worker(s.queues[i])
	}

	s.logger.Debug().
		Int("workers", s.workerCount).
		Int("queue_size", s.queueSize).
		Msg("Dispatch scheduler started")
}

// Submit enqueues a task on the lane's worker. It never blocks: when the
// worker's queue is full, the oldest queued task is dropped and counted so
// the host thread is never stalled by delivery backlog.
func (s *Scheduler) Submit(lane string, task Task) error {
	// The mutex is held across the enqueue selects. They never block, and it
	// keeps Submit from racing Stop's close of the queues.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return errors.ErrShuttingDown
	}
	if !s.started {
		s.startLocked()
	}
	queue := s.queues[s.laneIndex(lane)]

	s.submitted.Add(1)

	select {
	case queue <- task:
		return nil
	default:
	}

	// Queue full: evict the oldest queued task, then retry once. The retry
	// can still lose a race with other submitters; drop the new task then.
	select {
	case <-queue:
		s.dropped.Add(1)
		s.logger.Warn().Str("lane", lane).Msg("Dispatch queue full, oldest event dropped")
	default:
	}

	select {
	case queue <- task:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn().Str("lane", lane).Msg("Dispatch queue full, event dropped")
		return &errors.OverloadError{QueueSize: s.queueSize, Dropped: s.dropped.Load()}
	}
}

// Stop rejects further submissions and waits for queued work to drain until
// the context expires. On timeout the remaining queue depth is logged and
// reported as abandoned; workers exit once their current task completes.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped.Swap(true) {
		s.mu.Unlock()
		return nil
	}
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	for _, q := range s.queues {
		close(q)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug().Msg("Dispatch scheduler drained")
		return nil
	case <-ctx.Done():
		abandoned := s.QueueDepth()
		s.abandoned.Store(uint64(abandoned))
		s.logger.Warn().
			Int("abandoned", abandoned).
			Msg("Dispatch scheduler shutdown timed out, abandoning queued work")
		return &errors.ShutdownError{Component: "scheduler", Abandoned: abandoned, Err: ctx.Err()}
	}
}

// QueueDepth returns the number of queued, not yet started tasks.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	depth := 0
	for _, q := range s.queues {
		depth += len(q)
	}
	return depth
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Workers    int    `json:"workers"`
	QueueSize  int    `json:"queue_size"`
	QueueDepth int    `json:"queue_depth"`
	Submitted  uint64 `json:"submitted"`
	Processed  uint64 `json:"processed"`
	Dropped    uint64 `json:"dropped"`
	Panicked   uint64 `json:"panicked"`
	Abandoned  uint64 `json:"abandoned"`
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Workers:    s.workerCount,
		QueueSize:  s.queueSize,
		QueueDepth: s.QueueDepth(),
		Submitted:  s.submitted.Load(),
		Processed:  s.processed.Load(),
		Dropped:    s.dropped.Load(),
		Panicked:   s.panicked.Load(),
		Abandoned:  s.abandoned.Load(),
	}
}

func (s *Scheduler) worker(queue chan Task) {
	defer s.wg.Done()
	for task := range queue {
		s.run(task)
	}
}

// run executes one task with panic isolation. A panicking delivery must never
// take down the pool or reach the host.
func (s *Scheduler) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.panicked.Add(1)
			s.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Recovered panic in dispatch task")
		}
	}()

	task()
	s.processed.Add(1)
}

func (s *Scheduler) laneIndex(lane string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(lane))
	return int(h.Sum32() % uint32(s.workerCount))
}
