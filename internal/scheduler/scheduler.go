// Package scheduler owns the pending queue and the single worker that drains it.
//
// Exactly one drain goroutine exists at any instant. The active flag and the
// queue share one mutex, so a concurrent Enqueue either sees the running drain
// (which will pick its entry up) or starts a new one; a wakeup is never lost.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/genqueue/internal/store"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

var (
	ErrClosed        = errors.New("scheduler is shutting down")
	ErrAlreadyQueued = errors.New("job already queued")
)

// Entry is one pending unit of work. It carries everything the worker needs,
// so a queued job runs even if its status record expires first.
type Entry struct {
	ID     uuid.UUID
	Prompt string
	Model  string
}

// QueueSnapshot is a point-in-time copy of the scheduler state.
type QueueSnapshot struct {
	IsProcessing bool
	Pending      []Entry
}

// Recorder receives every job once it reaches a terminal state.
type Recorder interface {
	Record(ctx context.Context, job *models.Job) error
}

// Scheduler serializes generation jobs through one Generator.
type Scheduler struct {
	store     store.Store
	generator models.Generator
	recorder  Recorder
	model     string
	now       func() time.Time
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending []Entry
	active  bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTimeout bounds each Generator call. Zero (the default) leaves it unbounded.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithRecorder hands terminal jobs to r, typically the archive.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithDefaultModel sets the model used when a submission names none.
func WithDefaultModel(model string) Option {
	return func(s *Scheduler) { s.model = model }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler. It is idle until the first Enqueue.
func New(st store.Store, gen models.Generator, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:     st,
		generator: gen,
		now:       time.Now,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a queued job record and appends it to the queue. It returns
// immediately with the job and its 1-based queue position at admission time.
func (s *Scheduler) Submit(ctx context.Context, prompt, model string) (*models.Job, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	if model == "" {
		model = s.model
	}
	job := models.NewJob(prompt, model, s.now())
	if err := s.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("storing job: %w", err)
	}

	pos, err := s.Enqueue(Entry{ID: job.ID, Prompt: job.Prompt, Model: job.Model})
	if err != nil {
		// The record was never admitted; leaving it would show a queued job
		// that can never run.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), job.ID); delErr != nil {
			s.logger.Warn("removing unadmitted job", "job_id", job.ID, "error", delErr)
		}
		return nil, err
	}
	job.QueuePosition = pos

	s.logger.Info("job queued",
		"job_id", job.ID,
		"model", job.Model,
		"queue_position", pos,
	)
	return job, nil
}

// Enqueue appends e to the tail of the queue and makes sure a drain is running.
func (s *Scheduler) Enqueue(e Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	for _, p := range s.pending {
		if p.ID == e.ID {
			return 0, fmt.Errorf("%w: %s", ErrAlreadyQueued, e.ID)
		}
	}

	s.pending = append(s.pending, e)
	pos := len(s.pending)
	s.startLocked()
	return pos, nil
}

// Run starts the drain loop if there is work and none is running. Calling it
// while a drain is active is a no-op.
func (s *Scheduler) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

// startLocked spawns the drain goroutine. Caller holds mu.
func (s *Scheduler) startLocked() {
	if s.active || s.closed || len(s.pending) == 0 {
		return
	}
	s.active = true
	s.wg.Add(1)
	go s.drain()
}

// Position returns the 1-based position of id among pending jobs. It is a
// linear scan; the answer may be stale as soon as it is returned.
func (s *Scheduler) Position(id uuid.UUID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.pending {
		if e.ID == id {
			return i + 1, true
		}
	}
	return 0, false
}

// Snapshot copies the current queue state.
func (s *Scheduler) Snapshot() QueueSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]Entry, len(s.pending))
	copy(pending, s.pending)
	return QueueSnapshot{IsProcessing: s.active, Pending: pending}
}

// Shutdown stops admission, cancels the in-flight Generator call and waits for
// the drain loop to exit. Jobs still queued stay queued.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	remaining := len(s.pending)
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped", "abandoned_jobs", remaining)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Scheduler) drain() {
	defer s.wg.Done()

	s.logger.Info("queue processing started", "queue_length", len(s.Snapshot().Pending))

	for {
		e, ok := s.next()
		if !ok {
			s.logger.Info("queue processing idle")
			return
		}
		s.process(e)
	}
}

// next pops the head entry, or clears the active flag when there is nothing
// left to do. Both happen under mu so Enqueue cannot slip in between.
func (s *Scheduler) next() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.pending) == 0 {
		s.active = false
		return Entry{}, false
	}
	e := s.pending[0]
	s.pending[0] = Entry{}
	s.pending = s.pending[1:]
	return e, true
}

// process runs one job to a terminal state. Nothing here escapes: a failing
// job is recorded and the loop moves on.
func (s *Scheduler) process(e Entry) {
	log := s.logger.With("job_id", e.ID)
	// Status writes must land even while shutdown is cancelling s.ctx.
	ctx := context.WithoutCancel(s.ctx)

	if _, err := s.store.Update(ctx, e.ID, func(j *models.Job) error {
		return j.Start(s.now())
	}); err != nil {
		log.Warn("marking job processing", "error", err)
	}
	log.Info("job processing", "model", e.Model)

	started := time.Now()
	res, genErr := s.generate(e)
	elapsed := time.Since(started).Milliseconds()

	var (
		finished *models.Job
		err      error
	)
	if genErr != nil {
		finished, err = s.store.Update(ctx, e.ID, s.finish(func(j *models.Job, now time.Time) error {
			return j.Fail(now, genErr.Error())
		}))
		log.Warn("job failed", "error", genErr, "duration_ms", elapsed)
	} else {
		finished, err = s.store.Update(ctx, e.ID, s.finish(func(j *models.Job, now time.Time) error {
			return j.Complete(now, res.ResultURL)
		}))
		log.Info("job completed", "duration_ms", elapsed)
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("job record expired before it finished")
		} else {
			log.Error("recording job outcome", "error", err)
		}
		return
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, finished); err != nil {
			log.Error("archiving job", "error", err)
		}
	}
}

// finish wraps a terminal transition. If the processing write was lost, the
// record is still queued; it is moved through processing first so every job
// that reached the Generator ends completed or failed.
func (s *Scheduler) finish(to func(*models.Job, time.Time) error) func(*models.Job) error {
	return func(j *models.Job) error {
		now := s.now()
		if j.Status == models.JobStatusQueued {
			if err := j.Start(now); err != nil {
				return err
			}
		}
		return to(j, now)
	}
}

// generate calls the Generator with the optional timeout and turns a panic
// into an ordinary failure.
func (s *Scheduler) generate(e Entry) (res models.GenerationResult, err error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in generator", "error", r, "job_id", e.ID)
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()

	return s.generator.Generate(ctx, e.Prompt, e.Model)
}
