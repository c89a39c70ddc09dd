package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"go.uber.org/zap"
)

const sampleYAML = `
symbol: QQQM
options_symbol: QQQ
profile: enhanced
weekly_dca: 250
cash_buffer_pct: 0.2
risk:
  day_abs_loss_stop: 75
  trade_cooldown_min: 30
exits:
  spread_take_profit_pct: 0.6
schedules:
  dca: "30 9 * * TUE"
symbols:
  - ticker: QQQM
    weight: 3
  - ticker: SCHD
    weight: 1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	s, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, domain.ProfileEnhanced, s.Profile)
	assert.True(t, s.WeeklyDCA.Equal(decimal.NewFromInt(250)))
	assert.True(t, s.CashBufferPct.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, s.Risk.DayAbsLossStop.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, 30*time.Minute, s.Risk.Cooldown())
	// untouched keys keep defaults
	assert.Equal(t, 3, s.Risk.MaxTradesPerDay)
	assert.True(t, s.Risk.WeekLossPctStop.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, s.Exits.SpreadTakeProfitPct.Equal(decimal.RequireFromString("0.6")))
	assert.True(t, s.Exits.CondorTakeProfitPct.Equal(decimal.RequireFromString("0.4")))
	// schedule maps merge
	assert.Equal(t, "30 9 * * TUE", s.Schedules[JobDCA])
	assert.Equal(t, "*/10 * * * *", s.Schedules[JobExits])
	require.Len(t, s.Basket(), 2)
	assert.Equal(t, "SCHD", s.Basket()[1].Ticker)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "QQQM", s.Symbol)
	assert.Equal(t, domain.ModePaper, s.Mode)
	assert.True(t, s.StartingCash.Equal(decimal.NewFromInt(1000)))
	require.Len(t, s.Basket(), 1)
	assert.Equal(t, "QQQM", s.Basket()[0].Ticker)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STARTING_CASH", "2500")
	t.Setenv("QQQM_DB_URL", "sqlite://:memory:")
	t.Setenv("DISCORD_WEBHOOK", "https://discord.example/hook")

	s, err := Load("")
	require.NoError(t, err)
	assert.True(t, s.StartingCash.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, "sqlite://:memory:", s.DBURL)
	assert.Equal(t, "https://discord.example/hook", s.Notify.DiscordWebhook)

	t.Setenv("STARTING_CASH", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{name: "unknown broker", mutate: func(s *Settings) { s.Broker = "schwab" }},
		{name: "live mode with paper broker", mutate: func(s *Settings) { s.Mode = domain.ModeLive }},
		{name: "paper mode with live broker", mutate: func(s *Settings) { s.Broker = BrokerTradier }},
		{name: "bad mode", mutate: func(s *Settings) { s.Mode = "sim" }},
		{name: "bad profile", mutate: func(s *Settings) { s.Profile = "yolo" }},
		{name: "buffer out of range", mutate: func(s *Settings) { s.CashBufferPct = decimal.NewFromInt(1) }},
		{name: "bad report time", mutate: func(s *Settings) { s.ReportTime = "5pm" }},
		{name: "bad timezone", mutate: func(s *Settings) { s.Timezone = "Mars/Olympus" }},
		{name: "inverted dte window", mutate: func(s *Settings) { s.DTEWindow = DTEWindow{Min: 30, Max: 10} }},
		{name: "zero limits", mutate: func(s *Settings) { s.Limits.TradeCapacityPerSec = 0 }},
		{name: "zero trades per day", mutate: func(s *Settings) { s.Risk.MaxTradesPerDay = 0 }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}

	live := Default()
	live.Mode = domain.ModeLive
	live.Broker = BrokerTradier
	assert.NoError(t, live.Validate())
}

func TestExits_Rule(t *testing.T) {
	e := Default().Exits
	assert.True(t, e.Rule(domain.StrategyKindSpread).TakeProfitPct.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, e.Rule(domain.StrategyKindCondor).StopLossPct.Equal(decimal.RequireFromString("0.6")))
	assert.True(t, e.Rule(domain.StrategyKindCoveredCall).StopLossPct.Equal(decimal.RequireFromString("1.0")))
}

func TestReportClock(t *testing.T) {
	h, m, err := Default().ReportClock()
	require.NoError(t, err)
	assert.Equal(t, 17, h)
	assert.Equal(t, 30, m)
}

func TestHolder(t *testing.T) {
	h := NewHolder(Default())
	s := h.Current()
	s.Symbol = "SPY"
	assert.Equal(t, "QQQM", h.Current().Symbol, "Current must return a copy")

	h.Store(s)
	assert.Equal(t, "SPY", h.Current().Symbol)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	initial, err := Load(path)
	require.NoError(t, err)
	holder := NewHolder(initial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, holder, zap.NewNop())
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("symbol: SPY\noptions_symbol: SPY\n"), 0o644))

	require.Eventually(t, func() bool {
		return holder.Current().Symbol == "SPY"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestLoadEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("QQQM_TEST_ONLY_VAR=hello\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("QQQM_TEST_ONLY_VAR") })
	require.NoError(t, LoadEnv(envPath))
	assert.Equal(t, "hello", os.Getenv("QQQM_TEST_ONLY_VAR"))
}
