package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/qqqm/internal/app"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"github.com/vadiminshakov/qqqm/internal/web"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler, web control surface and config watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.withApp(ctx, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print control flags, the latest ledger row and open risk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				s := a.Settings.Current()
				fmt.Fprintf(out, "Mode %s | Broker %s | Profile %s\n", s.Mode, s.Broker, s.Profile)

				st, err := a.Guard.State(ctx)
				if err != nil {
					return err
				}
				printControls(out, st)

				if err := printLedger(ctx, out, a); err != nil {
					return err
				}

				items, err := a.Store.OpenRiskItems(ctx)
				if err != nil {
					return err
				}
				e := domain.NewExposure(items)
				fmt.Fprintf(out, "Open risk $%s | Bulls %d | Bears %d\n", e.OpenRisk.StringFixed(2), e.Bulls, e.Bears)
				return nil
			})
		},
	}
}

type control func(ctx context.Context, a *app.App) error

func controlPause(ctx context.Context, a *app.App) error { return a.Guard.Pause(ctx) }
func controlResume(ctx context.Context, a *app.App) error { return a.Guard.Resume(ctx) }
func controlKillReset(ctx context.Context, a *app.App) error { return a.Guard.ResetKillSwitch(ctx) }

func newControlCommand(opts *rootOptions, use, short string, fn control) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := fn(ctx, a); err != nil {
					return err
				}
				st, err := a.Guard.State(ctx)
				if err != nil {
					return err
				}
				printControls(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newCloseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <id>",
		Short: "Close one open option position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return errors.Errorf("incorrect option id %q", args[0])
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Broker.CloseOption(ctx, id, web.ManualCloseReason)
				if err != nil {
					return err
				}
				if !res.OK() {
					fmt.Fprintf(cmd.OutOrStdout(), "Option #%d not closed: %s\n", id, res.Reason)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed option #%d for $%s\n", id, res.Debit.StringFixed(2))
				return nil
			})
		},
	}
}

func newCloseAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close-all",
		Short: "Close every open option position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Broker.CloseAllOptions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed %d option positions\n", n)
				return nil
			})
		},
	}
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the latest ledger row and recent trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if err := printLedger(ctx, out, a); err != nil {
					return err
				}
				trades, err := a.Store.ListTrades(ctx, limit)
				if err != nil {
					return err
				}
				if len(trades) == 0 {
					fmt.Fprintln(out, "No trades")
					return nil
				}
				for _, t := range trades {
					fmt.Fprintf(out, "%s  %s\n", t.Timestamp.Format("2006-01-02 15:04"), t.String())
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent trades")
	return cmd
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Evaluate the risk guard once and print the decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d := a.Guard.Check(ctx)
				if d.Allow {
					fmt.Fprintln(cmd.OutOrStdout(), "Guard: allow")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Guard: blocked by %s: %s\n", d.Check, d.Reason)
				return nil
			})
		},
	}
}

func printControls(out io.Writer, st domain.ControlState) {
	last := "-"
	if st.LastTradeAt != nil {
		last = st.LastTradeAt.Format("2006-01-02 15:04:05 MST")
	}
	fmt.Fprintf(out, "Paused: %t | Kill-switch: %t | Last trade: %s\n", st.Paused, st.KillSwitch, last)
}

func printLedger(ctx context.Context, out io.Writer, a *app.App) error {
	snap, err := a.Store.LatestLedger(ctx)
	if errors.Is(err, sqlstore.ErrNotFound) {
		fmt.Fprintln(out, "Ledger is empty")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Cash $%s | Equity $%s | %s (%s)\n",
		snap.Cash.StringFixed(2), snap.Equity.StringFixed(2), snap.Timestamp.Format("2006-01-02 15:04"), snap.Note)
	return nil
}
