package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
)

type timetableGeneratorStub struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	requests []dto.GenerateTimetableRequest
}

func (s *timetableGeneratorStub) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.calls <= s.failures {
		return nil, errors.New("lock timeout")
	}
	return &dto.GenerateTimetableResponse{
		Report:    &timetable.Report{SlotCount: 40, Summary: "generated 40 slots for 1 class(es); all requirements met"},
		Committed: !req.DryRun,
	}, nil
}

func waitForJob(t *testing.T, d *GenerationDispatcher, id string, want dto.GenerationJobStatus) *dto.GenerationJobResponse {
	t.Helper()
	var status *dto.GenerationJobResponse
	require.Eventually(t, func() bool {
		current, err := d.Status(id)
		if err != nil {
			return false
		}
		status = current
		return current.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return status
}

func TestGenerationDispatcherRunsJob(t *testing.T) {
	generator := &timetableGeneratorStub{}
	d := NewGenerationDispatcher(generator, zap.NewNop(), GenerationDispatcherConfig{BufferSize: 4})
	d.Start(context.Background())
	defer d.Stop()

	queued, err := d.Enqueue(dto.GenerateTimetableRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, dto.GenerationJobQueued, queued.Status)
	assert.NotEmpty(t, queued.JobID)

	done := waitForJob(t, d, queued.JobID, dto.GenerationJobSucceeded)
	require.NotNil(t, done.Result)
	assert.Equal(t, 40, done.Result.Report.SlotCount)
	assert.Equal(t, 1, done.Attempts)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
	generator.mu.Lock()
	defer generator.mu.Unlock()
	assert.True(t, generator.requests[0].DryRun)
}

func TestGenerationDispatcherRetriesThenSucceeds(t *testing.T) {
	generator := &timetableGeneratorStub{failures: 1}
	d := NewGenerationDispatcher(generator, zap.NewNop(), GenerationDispatcherConfig{MaxRetries: 1, RetryDelay: 10 * time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	queued, err := d.Enqueue(dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	done := waitForJob(t, d, queued.JobID, dto.GenerationJobSucceeded)
	assert.Equal(t, 2, done.Attempts)
	assert.Empty(t, done.Error)
}

func TestGenerationDispatcherGivesUp(t *testing.T) {
	generator := &timetableGeneratorStub{failures: 10}
	d := NewGenerationDispatcher(generator, zap.NewNop(), GenerationDispatcherConfig{MaxRetries: 0})
	d.Start(context.Background())
	defer d.Stop()

	queued, err := d.Enqueue(dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	failed := waitForJob(t, d, queued.JobID, dto.GenerationJobFailed)
	assert.Equal(t, "lock timeout", failed.Error)
	assert.NotNil(t, failed.FinishedAt)
	assert.Nil(t, failed.Result)
}

func TestGenerationDispatcherSkipsRetryOnOccupancyViolation(t *testing.T) {
	generator := &timetableGeneratorStub{err: appErrors.Clone(appErrors.ErrOccupancyViolation, "teacher t1 already booked")}
	d := NewGenerationDispatcher(generator, zap.NewNop(), GenerationDispatcherConfig{MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	queued, err := d.Enqueue(dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	failed := waitForJob(t, d, queued.JobID, dto.GenerationJobFailed)
	assert.Equal(t, 1, failed.Attempts)
	assert.Equal(t, "teacher t1 already booked", failed.Error)
	generator.mu.Lock()
	defer generator.mu.Unlock()
	assert.Equal(t, 1, generator.calls)
}

func TestGenerationDispatcherUnknownJob(t *testing.T) {
	d := NewGenerationDispatcher(&timetableGeneratorStub{}, nil, GenerationDispatcherConfig{})
	_, err := d.Status("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGenerationDispatcherNotStarted(t *testing.T) {
	d := NewGenerationDispatcher(&timetableGeneratorStub{}, nil, GenerationDispatcherConfig{})
	_, err := d.Enqueue(dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrServiceUnavailable.Code, appErrors.FromError(err).Code)
}
