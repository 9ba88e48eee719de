package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingJob records how often it ran
type countingJob struct {
	runs int32
	err  error
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func (j *countingJob) Name() string {
	return "counting"
}

func TestScheduler_AddJobRejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a cron spec", &countingJob{})
	assert.Error(t, err)
}

func TestScheduler_RunNowBypassesSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{}
	// Registered far in the future; only RunNow should fire it
	require.NoError(t, s.AddJob("0 0 0 1 1 *", job))

	require.NoError(t, s.RunNow(job))
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(2), atomic.LoadInt32(&job.runs))

	failing := &countingJob{err: errors.New("feed down")}
	assert.Error(t, s.RunNow(failing), "RunNow surfaces the job's error to the caller")
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("0 0 0 1 1 *", &countingJob{}))
	s.Start()
	s.Stop()
}
