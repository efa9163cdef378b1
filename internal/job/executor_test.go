package job

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/internal/registry"
)

type stubSubmitter struct {
	calls   int
	lastID  string
	lastRes *Result
}

func (s *stubSubmitter) Submit(ctx context.Context, jobID string, result *Result) error {
	s.calls++
	s.lastID = jobID
	s.lastRes = result
	return nil
}

func TestExecuteHappyPath(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &Result{Score: 0.95, Metrics: map[string]float64{"acc": 0.95}, JobType: "eval"}, nil
	})

	ex := New(reg, Config{}, func() bool { return true })
	res := ex.Execute(context.Background(), &Request{JobID: "j1"}, &Context{}, nil)

	require.Equal(0.95, res.Score)
	require.Equal("eval", res.JobType)
	require.Empty(res.Error)
}

func TestExecuteOutOfRangeScoreClamped(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &Result{Score: 1.7, JobType: "x"}, nil
	})

	ex := New(reg, Config{}, func() bool { return true })
	res := ex.Execute(context.Background(), &Request{JobID: "j4"}, &Context{}, nil)

	require.Equal(1.0, res.Score)
	require.Equal("invalid_score", res.Error)
}

func TestExecuteTimeout(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		select {
		case <-time.After(2 * time.Second):
			return &Result{Score: 1, JobType: "slow"}, nil
		case <-ctx.Done():
			return &Result{Score: 0, Error: "cancelled"}, nil
		}
	})

	ex := New(reg, Config{Deadline: 50 * time.Millisecond}, func() bool { return true })
	res := ex.Execute(context.Background(), &Request{JobID: "j2"}, &Context{}, nil)

	require.Equal(0.0, res.Score)
	require.Equal("timeout", res.Error)
}

func TestExecuteHandlerErrorNeverCrashes(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})

	ex := New(reg, Config{}, func() bool { return true })
	res := ex.Execute(context.Background(), &Request{JobID: "j3"}, &Context{}, nil)

	require.Equal(0.0, res.Score)
	require.Equal("boom", res.Error)
}

func TestExecuteRejectsWhenNotReady(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	ex := New(reg, Config{}, func() bool { return false })
	res := ex.Execute(context.Background(), &Request{JobID: "j5"}, &Context{}, nil)

	require.Equal("not_ready", res.Error)
}

func TestExecuteFiltersNonFiniteMetrics(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &Result{
			Score:   0.5,
			JobType: "x",
			Metrics: map[string]float64{"ok": 1.0, "bad": math.NaN(), "inf": math.Inf(1)},
		}, nil
	})

	ex := New(reg, Config{}, func() bool { return true })
	res := ex.Execute(context.Background(), &Request{JobID: "j6"}, &Context{}, nil)

	require.Contains(res.Metrics, "ok")
	require.NotContains(res.Metrics, "bad")
	require.NotContains(res.Metrics, "inf")
}

func TestExecuteSubmitsResultIndependently(t *testing.T) {
	require := require.New(t)

	reg := registry.New()
	reg.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &Result{Score: 1, JobType: "x"}, nil
	})

	ex := New(reg, Config{}, func() bool { return true })
	sub := &stubSubmitter{}
	ex.Execute(context.Background(), &Request{JobID: "j7"}, &Context{}, sub)

	require.Eventually(func() bool { return sub.calls == 1 }, time.Second, 10*time.Millisecond)
	require.Equal("j7", sub.lastID)
}
