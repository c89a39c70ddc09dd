package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
)

func TestNew_JobTable(t *testing.T) {
	strategies := strategy.All(strategy.Deps{})

	tests := []struct {
		name   string
		mutate func(*config.Settings)
		want   []string
	}{
		{
			name: "balanced",
			want: []string{"daily_report", "dca", "exits", "rebalance", "snapshot", "wheel"},
		},
		{
			name:   "enhanced adds spreads and condor",
			mutate: func(s *config.Settings) { s.Profile = domain.ProfileEnhanced },
			want:   []string{"condor", "daily_report", "dca", "exits", "rebalance", "snapshot", "spreads", "wheel"},
		},
		{
			name:   "daily reports disabled",
			mutate: func(s *config.Settings) { s.DailyReports = false },
			want:   []string{"dca", "exits", "rebalance", "snapshot", "wheel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			h := newHarness(t)
			sc, err := New(h.runner, strategies, nil, s, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.Jobs())
		})
	}
}

func TestNew_RejectsBadSpec(t *testing.T) {
	s := config.Default()
	s.Schedules[config.JobExits] = "every ten minutes"

	_, err := New(newHarness(t).runner, strategy.All(strategy.Deps{}), nil, s, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exits")
}

func TestNew_MissingStrategy(t *testing.T) {
	_, err := New(newHarness(t).runner, map[string]strategy.Strategy{}, nil, config.Default(), nil)
	require.Error(t, err)
}

func TestSpec(t *testing.T) {
	s := config.Default()

	spec, err := Spec(s, config.JobDailyReport)
	require.NoError(t, err)
	assert.Equal(t, "30 17 * * MON-FRI", spec)

	spec, err = Spec(s, config.JobDCA)
	require.NoError(t, err)
	assert.Equal(t, "0 10 * * MON", spec)

	s.Schedules[config.JobDailyReport] = "0 18 * * *"
	spec, err = Spec(s, config.JobDailyReport)
	require.NoError(t, err)
	assert.Equal(t, "0 18 * * *", spec)

	_, err = Spec(s, "unknown")
	require.Error(t, err)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	sc, err := New(newHarness(t).runner, strategy.All(strategy.Deps{}), nil, config.Default(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
