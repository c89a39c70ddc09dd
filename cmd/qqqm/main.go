// Command qqqm runs the QQQM DCA and options income bot.
//
// Usage:
//
//	qqqm run --config config.yaml
//	qqqm status
//	qqqm pause | resume | kill-reset
//	qqqm close <id> | close-all
//	qqqm report | check
//
// Secrets are read from the environment or a .env file:
//
//	TRADIER_ACCESS_TOKEN, TRADIER_ACCOUNT_ID, DISCORD_WEBHOOK,
//	TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, DASHBOARD_PASSWORD
package main

import (
	"os"

	"github.com/vadiminshakov/qqqm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
