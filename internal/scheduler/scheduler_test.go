package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"SpreadSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestJobsFollowEnabledList(t *testing.T) {
	cfg := config.SyncConfig{Cron: "0 */6 * * *", ScoresCron: "", EnabledJobs: []string{"scores", "live", "bogus"}}

	jobs := Jobs(cfg, nil, nil, nil, quietLogger())
	require.Len(t, jobs, 1, "scores has no spec and bogus is unknown")
	assert.Equal(t, JobLive, jobs[0].Name)
	assert.Equal(t, "0 */6 * * *", jobs[0].Spec)

	assert.Empty(t, Jobs(config.SyncConfig{Cron: "@hourly"}, nil, nil, nil, quietLogger()))
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(quietLogger())
	err := s.Add(Job{Name: JobLive, Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)

	assert.NoError(t, s.Add(Job{Name: JobLive, Spec: "@every 1h", Run: func(context.Context) error { return nil }}))
}

func TestWrapRunsJobWithDeadline(t *testing.T) {
	s := New(quietLogger())
	calls := 0
	var hadDeadline bool
	s.wrap(Job{Name: JobScores, Run: func(ctx context.Context) error {
		calls++
		_, hadDeadline = ctx.Deadline()
		return errors.New("feed down")
	}})()

	assert.Equal(t, 1, calls)
	assert.True(t, hadDeadline)
}

func TestStartStop(t *testing.T) {
	s := New(quietLogger())
	s.Start()
	s.Stop(context.Background())
}
