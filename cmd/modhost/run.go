package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/app"
	"github.com/caffeineduck/modhost/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load extensions and drive ticks",
	Long: `Load the configured extensions and run the tick loop.

On a terminal an interactive view shows the tick counter, the entity count
and each extension's last message or error. With --headless, MVP_HEADLESS
set, or stdout not a terminal, ticks run without a view and results go to
the log.

Examples:
  modhost run -c modhost.yaml
  modhost run --ext greeter=greeter.wasm --headless --ticks 10`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("headless", false, "Run without the interactive view")
	runCmd.Flags().Uint64("ticks", 0, "Stop after N ticks (0: until interrupted)")
	runCmd.Flags().Duration("tick-rate", 0, "Interval between ticks")
	runCmd.Flags().Duration("call-timeout", 0, "Bound each extension call (0: no bound)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if f := cmd.Flags().Lookup("headless"); f.Changed {
		cfg.Headless, _ = cmd.Flags().GetBool("headless")
	}
	if f := cmd.Flags().Lookup("ticks"); f.Changed {
		cfg.MaxTicks, _ = cmd.Flags().GetUint64("ticks")
	}
	if f := cmd.Flags().Lookup("tick-rate"); f.Changed {
		cfg.TickRate, _ = cmd.Flags().GetDuration("tick-rate")
	}
	if f := cmd.Flags().Lookup("call-timeout"); f.Changed {
		cfg.CallTimeout, _ = cmd.Flags().GetDuration("call-timeout")
	}
	if len(cfg.Extensions) == 0 {
		return fmt.Errorf("no extensions configured: use --config or --ext name=path")
	}

	interactive := !cfg.Headless && tui.IsTerminal(os.Stdout)

	log, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	log.Info("extensions loaded", zap.Int("count", len(cfg.Extensions)), zap.Bool("interactive", interactive))
	if interactive {
		return tui.Run(ctx, a, cfg.TickRate, cfg.MaxTicks)
	}
	return a.Run(ctx)
}
