package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/dto"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
	"github.com/noah-isme/ttapp-api/pkg/jobs"
)

const generationJobType = "timetable.generate"

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

// GenerationDispatcherConfig tunes the asynchronous generation queue.
type GenerationDispatcherConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	ResultTTL  time.Duration
}

// GenerationDispatcher runs timetable generations on a single background worker.
type GenerationDispatcher struct {
	generator timetableGenerator
	queue     *jobs.Queue
	store     *generationJobStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewGenerationDispatcher builds the dispatcher. Call Start before enqueueing.
func NewGenerationDispatcher(generator timetableGenerator, logger *zap.Logger, cfg GenerationDispatcherConfig) *GenerationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	d := &GenerationDispatcher{
		generator: generator,
		store:     newGenerationJobStore(cfg.ResultTTL),
		logger:    logger,
		now:       time.Now,
	}
	// One worker keeps queued runs strictly sequential.
	d.queue = jobs.NewQueue("timetable-generation", d.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnGiveUp:   d.giveUp,
		Logger:     logger,
	})
	return d
}

// Start launches the worker.
func (d *GenerationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop terminates the worker and waits for it to exit.
func (d *GenerationDispatcher) Stop() {
	d.queue.Stop()
}

// Enqueue schedules a generation run and returns its initial status.
func (d *GenerationDispatcher) Enqueue(req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error) {
	status := dto.GenerationJobResponse{
		JobID:      uuid.NewString(),
		Status:     dto.GenerationJobQueued,
		DryRun:     req.DryRun,
		EnqueuedAt: d.now().UTC(),
	}
	d.store.Save(status)

	job := jobs.Job{ID: status.JobID, Type: generationJobType, Payload: req, Enqueued: status.EnqueuedAt}
	if err := d.queue.Enqueue(job); err != nil {
		d.store.Delete(status.JobID)
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "generation queue unavailable")
	}
	d.logger.Info("generation job enqueued", zap.String("job_id", status.JobID), zap.Bool("dry_run", req.DryRun))
	return &status, nil
}

// Status returns the current state of a queued generation.
func (d *GenerationDispatcher) Status(id string) (*dto.GenerationJobResponse, error) {
	status, ok := d.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &status, nil
}

func (d *GenerationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}

	started := d.now().UTC()
	d.store.Update(job.ID, func(s *dto.GenerationJobResponse) {
		s.Status = dto.GenerationJobRunning
		s.Attempts = job.Attempt + 1
		s.StartedAt = &started
	})

	resp, err := d.generator.Generate(ctx, req)
	if err != nil {
		d.store.Update(job.ID, func(s *dto.GenerationJobResponse) {
			s.Error = err.Error()
		})
		if errors.Is(err, appErrors.ErrValidation) || errors.Is(err, appErrors.ErrOccupancyViolation) {
			return jobs.Permanent(err)
		}
		return err
	}

	finished := d.now().UTC()
	d.store.Update(job.ID, func(s *dto.GenerationJobResponse) {
		s.Status = dto.GenerationJobSucceeded
		s.FinishedAt = &finished
		s.Error = ""
		s.Result = resp
	})
	return nil
}

func (d *GenerationDispatcher) giveUp(job jobs.Job, err error) {
	finished := d.now().UTC()
	d.store.Update(job.ID, func(s *dto.GenerationJobResponse) {
		s.Status = dto.GenerationJobFailed
		s.FinishedAt = &finished
		s.Error = err.Error()
	})
}

type generationJobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]dto.GenerationJobResponse
}

func newGenerationJobStore(ttl time.Duration) *generationJobStore {
	return &generationJobStore{
		ttl:   ttl,
		items: make(map[string]dto.GenerationJobResponse),
	}
}

func (s *generationJobStore) Save(status dto.GenerationJobResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[status.JobID] = status
}

func (s *generationJobStore) Get(id string) (dto.GenerationJobResponse, bool) {
	s.mu.RLock()
	status, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.GenerationJobResponse{}, false
	}
	if time.Since(status.EnqueuedAt) > s.ttl {
		s.Delete(id)
		return dto.GenerationJobResponse{}, false
	}
	return status, true
}

func (s *generationJobStore) Update(id string, fn func(*dto.GenerationJobResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.items[id]
	if !ok {
		return
	}
	fn(&status)
	s.items[id] = status
}

func (s *generationJobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
