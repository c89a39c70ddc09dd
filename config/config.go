package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"gopkg.in/yaml.v3"
)

// Known broker names.
const (
	BrokerPaper   = "paper"
	BrokerTradier = "tradier"
)

// Job names used as schedule keys.
const (
	JobDCA         = "dca"
	JobWheel       = "wheel"
	JobSpreads     = "spreads"
	JobCondor      = "condor"
	JobExits       = "exits"
	JobSnapshot    = "snapshot"
	JobRebalance   = "rebalance"
	JobDailyReport = "daily_report"
)

// Settings is the full bot configuration.
type Settings struct {
	Symbol        string          `yaml:"symbol"`
	OptionsSymbol string          `yaml:"options_symbol"`
	Symbols       []Asset         `yaml:"symbols"`
	Mode          domain.Mode     `yaml:"mode"`
	Broker        string          `yaml:"broker"`
	Profile       domain.Profile  `yaml:"profile"`
	WeeklyDCA     decimal.Decimal `yaml:"weekly_dca"`
	CashBufferPct decimal.Decimal `yaml:"cash_buffer_pct"`
	// VixMax is the secondary gate ceiling; Risk.VixCeiling is the guard ceiling.
	VixMax                decimal.Decimal `yaml:"vix_max"`
	PutPctOTM             decimal.Decimal `yaml:"put_pct_otm"`
	CallPctOTM            decimal.Decimal `yaml:"call_pct_otm"`
	DeployFullCashOnStart bool            `yaml:"deploy_full_cash_on_start"`
	StartingCash          decimal.Decimal `yaml:"starting_cash"`

	Risk      Risk      `yaml:"risk"`
	Exits     Exits     `yaml:"exits"`
	VolSizing VolSizing `yaml:"vol_sizing"`
	Limits    Limits    `yaml:"limits"`
	DTEWindow DTEWindow `yaml:"dte_window"`

	DailyReports bool              `yaml:"daily_reports"`
	ReportTime   string            `yaml:"report_time"`
	Timezone     string            `yaml:"timezone"`
	Schedules    map[string]string `yaml:"schedules"`

	DBURL      string  `yaml:"db_url"`
	JournalDir string  `yaml:"journal_dir"`
	Web        Web     `yaml:"web"`
	Notify     Notify  `yaml:"notify"`
	Tradier    Tradier `yaml:"tradier"`
}

// Asset is one entry of the weighted DCA basket.
type Asset struct {
	Ticker string          `yaml:"ticker"`
	Weight decimal.Decimal `yaml:"weight"`
}

// Risk holds RiskGuard thresholds.
type Risk struct {
	DayAbsLossStop    decimal.Decimal `yaml:"day_abs_loss_stop"`
	WeekLossPctStop   decimal.Decimal `yaml:"week_loss_pct_stop"`
	MaxOpenRiskPct    decimal.Decimal `yaml:"max_open_risk_pct"`
	VixCeiling        decimal.Decimal `yaml:"vix_ceiling"`
	TradeCooldownMin  int             `yaml:"trade_cooldown_min"`
	MaxTradesPerDay   int             `yaml:"max_trades_per_day"`
	DirectionCapRatio decimal.Decimal `yaml:"direction_cap_ratio"`
}

// Cooldown returns the trade cooldown as a duration.
func (r Risk) Cooldown() time.Duration {
	return time.Duration(r.TradeCooldownMin) * time.Minute
}

// Exits holds take-profit and stop-loss fractions of entry credit per strategy kind.
type Exits struct {
	SpreadTakeProfitPct decimal.Decimal `yaml:"spread_take_profit_pct"`
	SpreadStopLossPct   decimal.Decimal `yaml:"spread_stop_loss_pct"`
	CondorTakeProfitPct decimal.Decimal `yaml:"condor_take_profit_pct"`
	CondorStopLossPct   decimal.Decimal `yaml:"condor_stop_loss_pct"`
	WheelTakeProfitPct  decimal.Decimal `yaml:"wheel_take_profit_pct"`
	WheelStopLossPct    decimal.Decimal `yaml:"wheel_stop_loss_pct"`
}

// ExitRule is a take-profit/stop-loss pair.
type ExitRule struct {
	TakeProfitPct decimal.Decimal
	StopLossPct   decimal.Decimal
}

// Rule returns the thresholds for kind.
func (e Exits) Rule(kind domain.StrategyKind) ExitRule {
	switch {
	case kind == domain.StrategyKindSpread:
		return ExitRule{TakeProfitPct: e.SpreadTakeProfitPct, StopLossPct: e.SpreadStopLossPct}
	case kind.IsWheel():
		return ExitRule{TakeProfitPct: e.WheelTakeProfitPct, StopLossPct: e.WheelStopLossPct}
	default:
		return ExitRule{TakeProfitPct: e.CondorTakeProfitPct, StopLossPct: e.CondorStopLossPct}
	}
}

// VolSizing maps VIX to a sizing factor.
type VolSizing struct {
	VixFloor   decimal.Decimal `yaml:"vix_floor"`
	VixTarget  decimal.Decimal `yaml:"vix_target"`
	VixCeiling decimal.Decimal `yaml:"vix_ceiling"`
	MinFactor  decimal.Decimal `yaml:"min_factor"`
	MaxFactor  decimal.Decimal `yaml:"max_factor"`
}

// Limits are the outbound rate limits.
type Limits struct {
	DataCapacityPerMin  int `yaml:"data_capacity_per_min"`
	TradeCapacityPerSec int `yaml:"trade_capacity_per_sec"`
}

// DTEWindow is the days-to-expiry window used to pick option expiries.
type DTEWindow struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Web configures the control surface.
type Web struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// Notify configures notification senders.
type Notify struct {
	DiscordWebhook string   `yaml:"discord_webhook"`
	TelegramToken  string   `yaml:"telegram_token"`
	TelegramChatID string   `yaml:"telegram_chat_id"`
	Events         []string `yaml:"events"`
}

// Tradier configures the Tradier REST adapters.
type Tradier struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	AccountID string `yaml:"account_id"`
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Default returns settings with every default applied.
func Default() Settings {
	return Settings{
		Symbol:                "QQQM",
		OptionsSymbol:         "QQQ",
		Mode:                  domain.ModePaper,
		Broker:                BrokerPaper,
		Profile:               domain.ProfileBalanced,
		WeeklyDCA:             dec("100"),
		CashBufferPct:         dec("0.12"),
		VixMax:                dec("28"),
		PutPctOTM:             dec("0.05"),
		CallPctOTM:            dec("0.05"),
		DeployFullCashOnStart: true,
		StartingCash:          dec("1000"),
		Risk: Risk{
			DayAbsLossStop:    dec("50"),
			WeekLossPctStop:   dec("0.10"),
			MaxOpenRiskPct:    dec("0.06"),
			VixCeiling:        dec("28"),
			TradeCooldownMin:  20,
			MaxTradesPerDay:   3,
			DirectionCapRatio: dec("2.0"),
		},
		Exits: Exits{
			SpreadTakeProfitPct: dec("0.5"),
			SpreadStopLossPct:   dec("0.5"),
			CondorTakeProfitPct: dec("0.4"),
			CondorStopLossPct:   dec("0.6"),
			WheelTakeProfitPct:  dec("0.5"),
			WheelStopLossPct:    dec("1.0"),
		},
		VolSizing: VolSizing{
			VixFloor:   dec("15"),
			VixTarget:  dec("20"),
			VixCeiling: dec("28"),
			MinFactor:  dec("0.4"),
			MaxFactor:  dec("1.0"),
		},
		Limits:       Limits{DataCapacityPerMin: 110, TradeCapacityPerSec: 2},
		DTEWindow:    DTEWindow{Min: 21, Max: 35},
		DailyReports: true,
		ReportTime:   "17:30",
		Timezone:     "America/New_York",
		Schedules: map[string]string{
			JobDCA:       "0 10 * * MON",
			JobWheel:     "5 10 * * MON",
			JobSpreads:   "10 10 * * MON",
			JobCondor:    "15 10 * * MON",
			JobExits:     "*/10 * * * *",
			JobSnapshot:  "*/3 * * * *",
			JobRebalance: "20 10 * * MON-FRI",
		},
		DBURL:      "sqlite://data/trades.db",
		JournalDir: "./wal/journal",
		Web:        Web{Addr: ":5005"},
		Tradier:    Tradier{BaseURL: "https://api.tradier.com/v1"},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment overrides and validates.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &s); err != nil {
			return Settings{}, errors.Wrap(err, "incorrect yaml config")
		}
	}

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Validate checks enums, ranges and formats.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return errors.New("incorrect 'symbol' param: must not be empty")
	}
	if strings.TrimSpace(s.OptionsSymbol) == "" {
		return errors.New("incorrect 'options_symbol' param: must not be empty")
	}
	if !s.Mode.IsValid() {
		return errors.Errorf("incorrect 'mode' param: %q", s.Mode)
	}
	switch s.Broker {
	case BrokerPaper, BrokerTradier:
	default:
		return errors.Errorf("incorrect 'broker' param: %q is not supported", s.Broker)
	}
	if s.Mode == domain.ModePaper && s.Broker != BrokerPaper {
		return errors.Errorf("incorrect 'broker' param: paper mode requires the paper broker, got %q", s.Broker)
	}
	if s.Mode == domain.ModeLive && s.Broker == BrokerPaper {
		return errors.New("incorrect 'broker' param: live mode requires a live broker")
	}
	if !s.Profile.IsValid() {
		return errors.Errorf("incorrect 'profile' param: %q", s.Profile)
	}
	if s.WeeklyDCA.IsNegative() {
		return errors.New("incorrect 'weekly_dca' param: must not be negative")
	}
	if s.CashBufferPct.IsNegative() || s.CashBufferPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Errorf("incorrect 'cash_buffer_pct' param: %s must be in [0, 1)", s.CashBufferPct)
	}
	if !s.StartingCash.IsPositive() {
		return errors.New("incorrect 'starting_cash' param: must be positive")
	}
	for _, a := range s.Symbols {
		if a.Ticker == "" || a.Weight.IsNegative() {
			return errors.Errorf("incorrect 'symbols' entry: %+v", a)
		}
	}
	if s.Risk.TradeCooldownMin < 0 || s.Risk.MaxTradesPerDay < 1 {
		return errors.New("incorrect 'risk' params: cooldown must be >= 0 and max_trades_per_day >= 1")
	}
	if !s.Risk.DirectionCapRatio.IsPositive() {
		return errors.New("incorrect 'risk.direction_cap_ratio' param: must be positive")
	}
	if s.Limits.DataCapacityPerMin < 1 || s.Limits.TradeCapacityPerSec < 1 {
		return errors.New("incorrect 'limits' params: capacities must be positive")
	}
	if s.DTEWindow.Min < 0 || s.DTEWindow.Max < s.DTEWindow.Min {
		return errors.Errorf("incorrect 'dte_window' param: [%d, %d]", s.DTEWindow.Min, s.DTEWindow.Max)
	}
	if !s.VolSizing.VixCeiling.GreaterThan(s.VolSizing.VixFloor) {
		return errors.New("incorrect 'vol_sizing' params: vix_ceiling must exceed vix_floor")
	}
	if _, _, err := s.ReportClock(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// ReportClock parses ReportTime as HH:MM.
func (s Settings) ReportClock() (hour, minute int, _ error) {
	t, err := time.Parse("15:04", s.ReportTime)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "incorrect 'report_time' param %q (correct format is 17:30)", s.ReportTime)
	}
	return t.Hour(), t.Minute(), nil
}

// Location loads the scheduling time zone.
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "incorrect 'timezone' param %q", s.Timezone)
	}
	return loc, nil
}

// Basket returns the weighted DCA basket, defaulting to the primary symbol.
func (s Settings) Basket() []Asset {
	if len(s.Symbols) == 0 {
		return []Asset{{Ticker: s.Symbol, Weight: decimal.NewFromInt(1)}}
	}
	return s.Symbols
}
