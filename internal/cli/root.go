// Package cli implements the qqqm command line.
package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the qqqm command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "qqqm",
		Short: "Risk-guarded QQQM DCA and options income bot",
		Long: `qqqm runs a weekly QQQM dollar-cost-averaging plan with an options income
overlay (wheel, bull put spreads, iron condors) behind a persistent risk guard.

Without --config the built-in defaults are used; environment variables and a
.env file in the working directory override both.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCommand(opts),
		newStatusCommand(opts),
		newControlCommand(opts, "pause", "Pause new trades", controlPause),
		newControlCommand(opts, "resume", "Resume trading", controlResume),
		newControlCommand(opts, "kill-reset", "Reset the kill-switch", controlKillReset),
		newCloseCommand(opts),
		newCloseAllCommand(opts),
		newReportCommand(opts),
		newCheckCommand(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) settings() (config.Settings, error) {
	if err := config.LoadEnv(); err != nil {
		return config.Settings{}, err
	}
	return config.Load(o.configPath)
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "incorrect --log-level %q", o.logLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// withApp builds the app, runs fn and releases the app.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	s, err := o.settings()
	if err != nil {
		return err
	}
	logger, err := o.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, s, o.configPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close app", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}
