package config

import (
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// LoadEnv loads .env style files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load env file %s", f)
		}
	}
	return nil
}

func applyEnv(s *Settings) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("QQQM_DB_URL", &s.DBURL)
	setString("QQQM_BROKER", &s.Broker)
	setString("QQQM_JOURNAL_DIR", &s.JournalDir)
	setString("QQQM_WEB_ADDR", &s.Web.Addr)
	setString("DASHBOARD_PASSWORD", &s.Web.Password)
	setString("DISCORD_WEBHOOK", &s.Notify.DiscordWebhook)
	setString("TELEGRAM_BOT_TOKEN", &s.Notify.TelegramToken)
	setString("TELEGRAM_CHAT_ID", &s.Notify.TelegramChatID)
	setString("TRADIER_BASE_URL", &s.Tradier.BaseURL)
	setString("TRADIER_ACCESS_TOKEN", &s.Tradier.Token)
	setString("TRADIER_ACCOUNT_ID", &s.Tradier.AccountID)

	if v, ok := os.LookupEnv("QQQM_MODE"); ok && v != "" {
		s.Mode = domain.Mode(v)
	}
	if v, ok := os.LookupEnv("STARTING_CASH"); ok && v != "" {
		cash, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrapf(err, "incorrect STARTING_CASH env %q", v)
		}
		s.StartingCash = cash
	}

	return nil
}
