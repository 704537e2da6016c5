package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/digital-bank-auth/internal/usecase"
)

type stubSweeper struct {
	mu     sync.Mutex
	calls  int
	result usecase.SweepResult
	err    error
}

func (s *stubSweeper) Sweep(context.Context) (usecase.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

type recordingObserver struct {
	sessions, tokens int64
	calls            int
}

func (r *recordingObserver) ObserveSweep(sessions, resetTokens int64) {
	r.calls++
	r.sessions += sessions
	r.tokens += resetTokens
}

func TestRunOnceReportsSweep(t *testing.T) {
	sweeper := &stubSweeper{result: usecase.SweepResult{Sessions: 4, ResetTokens: 2}}
	observer := &recordingObserver{}

	s, err := NewScheduler("0 */5 * * * *", sweeper, observer, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.RunOnce()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, observer.calls)
	assert.EqualValues(t, 4, observer.sessions)
	assert.EqualValues(t, 2, observer.tokens)
}

func TestRunOnceSkipsObserverOnError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	observer := &recordingObserver{}

	s, err := NewScheduler("@every 1m", sweeper, observer, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.RunOnce()

	assert.Equal(t, 1, sweeper.calls)
	assert.Zero(t, observer.calls)
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler("every now and then", &stubSweeper{}, nil, nil)
	require.Error(t, err)

	_, err = NewScheduler("@every 1m", nil, nil, nil)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", &stubSweeper{}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}
