package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/modhost/executor"
	"github.com/caffeineduck/modhost/hostfunc"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect file.{wasm,wat}",
	Short: "Show a module's imports, exports and entry point",
	Long: `Compile a module without instantiating it and report whether it can be
loaded as an extension: a run export with a supported signature, a memory
export when run returns a message, and only imports the host provides.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	exec, err := executor.New(hostfunc.NewRegistry())
	if err != nil {
		return err
	}
	defer exec.Close()

	r, err := exec.Inspect(context.Background(), executor.FileSource(args[0]))
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), r)
	if !r.OK() {
		return fmt.Errorf("%s cannot be loaded as an extension", args[0])
	}
	return nil
}

func printReport(w io.Writer, r *executor.Report) {
	fmt.Fprintf(w, "module: %s\n", r.Source)

	fmt.Fprintf(w, "imports (%d):\n", len(r.Imports))
	for _, f := range r.Imports {
		fmt.Fprintf(w, "  %s.%s %s\n", f.Module, f.Name, f.Signature)
	}
	fmt.Fprintf(w, "exports (%d):\n", len(r.Exports))
	for _, f := range r.Exports {
		fmt.Fprintf(w, "  %s %s\n", f.Name, f.Signature)
	}
	for _, m := range r.Memories {
		fmt.Fprintf(w, "  %s (memory)\n", m)
	}
	if r.Reactor {
		fmt.Fprintf(w, "reactor: %s runs at load\n", executor.ExportInitialize)
	}

	if r.EntryErr != nil {
		fmt.Fprintf(w, "entry point: %v\n", r.EntryErr)
	} else {
		fmt.Fprintf(w, "entry point: %s\n", r.Entry)
	}
	for _, m := range r.Missing {
		fmt.Fprintf(w, "missing host function: %s.%s\n", m.Module, m.Function)
	}
	if r.OK() {
		fmt.Fprintln(w, "verdict: loadable")
	} else {
		fmt.Fprintln(w, "verdict: not loadable")
	}
}
