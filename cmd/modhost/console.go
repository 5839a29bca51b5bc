package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/modhost/app"
	"github.com/caffeineduck/modhost/executor"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Operator console that steps ticks by hand",
	Long: `Start an interactive operator console.

Commands:
  tick [n]   run n ticks (default 1)
  world      entity counts by origin
  mods       loaded extensions and their last outcome
  handles    live handles per extension and windows opened
  help       this list
  quit       leave the console

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().String("history", "", "History file path (default: ~/.modhost_history)")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".modhost_history")
	}

	log, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()
	defer log.Sync()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "modhost> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintf(out, "modhost console, %d extension(s) loaded (type 'help')\n", len(a.Host().Extensions()))

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if quit := execLine(ctx, a, out, line); quit {
			return nil
		}
	}
}

// execLine runs one console command and reports whether to quit.
func execLine(ctx context.Context, a *app.App, w io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		fmt.Fprintln(w, "tick [n] | world | mods | handles | help | quit")

	case "tick":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(w, "invalid tick count %q\n", fields[1])
				return false
			}
			n = v
		}
		for i := 0; i < n; i++ {
			r := a.Step(ctx)
			fmt.Fprintf(w, "tick %d: %d invoked, %d failed, %d spawned, %d entities\n",
				r.Tick, len(r.Outcomes), r.Failures(), len(r.Spawned), r.Entities)
			for _, o := range r.Outcomes {
				switch {
				case o.Err != nil:
					fmt.Fprintf(w, "  %s: error: %v\n", o.Extension, o.Err)
				case o.Message != "":
					fmt.Fprintf(w, "  %s: %s\n", o.Extension, o.Message)
				}
			}
		}

	case "world":
		counts := a.World().CountBy()
		origins := make([]string, 0, len(counts))
		for o := range counts {
			origins = append(origins, o)
		}
		sort.Strings(origins)
		fmt.Fprintf(w, "%d entities\n", a.World().Len())
		for _, o := range origins {
			fmt.Fprintf(w, "  %-20s %d\n", o, counts[o])
		}

	case "mods":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSCHEDULE\tENTRY\tRUNS\tFAILS\tSPAWNS\tSTATUS")
		for _, ext := range a.Host().Extensions() {
			s := ext.Stats()
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				ext.Name(), ext.Schedule(), ext.EntryPoint(), s.Invocations, s.Failures, s.Spawns, status(ext))
		}
		tw.Flush()

	case "handles":
		fmt.Fprintf(w, "windows opened: %d, window open: %t\n", a.Host().Windows(), a.Host().WindowOpen())
		for _, ext := range a.Host().Extensions() {
			fmt.Fprintf(w, "  %-20s %v\n", ext.Name(), ext.Handles())
		}

	default:
		fmt.Fprintf(w, "unknown command %q (type 'help')\n", fields[0])
	}
	return false
}

func status(ext *executor.Extension) string {
	out, ok := ext.LastOutcome()
	switch {
	case ext.Closed():
		return "closed"
	case !ok:
		return "idle"
	case out.Err != nil:
		return "failed"
	default:
		return "ok"
	}
}
