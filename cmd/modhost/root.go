package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/config"
	"github.com/caffeineduck/modhost/internal/logging"
)

// sampleMod is loaded when neither a config file nor --ext names an extension.
var sampleMod = filepath.Join("examples", "startup-mod", "startup_mod.wat")

var rootCmd = &cobra.Command{
	Use:   "modhost",
	Short: "Host WebAssembly mods that act on a game world",
	Long: `modhost - Load WebAssembly extensions and lend them the game's commands.

Each tick every scheduled extension's run export is called with a handle.
Through the mvp:game/api host functions the handle reaches the tick's
commands, and only for the duration of that call.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringArray("ext", nil, "Extension name=path[@startup] (repeatable)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console, json")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
}

// loadConfig reads --config or starts from defaults, then applies flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	exts, _ := cmd.Flags().GetStringArray("ext")

	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	for _, spec := range exts {
		ext, err := parseExt(spec)
		if err != nil {
			return nil, err
		}
		cfg.Extensions = append(cfg.Extensions, ext)
	}

	if path == "" && len(cfg.Extensions) == 0 {
		if _, err := os.Stat(sampleMod); err == nil {
			cfg.Extensions = []config.Extension{{Name: "startup-mod", Path: sampleMod, Schedule: "startup"}}
		}
	}

	if f := cmd.Flags().Lookup("log-level"); f.Changed {
		cfg.LogLevel = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-format"); f.Changed {
		cfg.LogFormat = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-file"); f.Changed {
		cfg.LogFile = f.Value.String()
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.CacheDir = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseExt(spec string) (config.Extension, error) {
	name, path, ok := strings.Cut(spec, "=")
	if !ok || name == "" || path == "" {
		return config.Extension{}, fmt.Errorf("invalid extension %q (expected name=path[@startup])", spec)
	}
	ext := config.Extension{Name: name, Path: path}
	if i := strings.LastIndex(path, "@"); i > 0 {
		switch sched := path[i+1:]; sched {
		case "startup", "update":
			ext.Path, ext.Schedule = path[:i], sched
		}
	}
	return ext, nil
}

// newLogger builds the process logger. quiet discards output unless a log
// file is configured, so logs do not draw over the interactive view.
func newLogger(cfg *config.Config, quiet bool) (*zap.Logger, func() error, error) {
	if quiet && cfg.LogFile == "" {
		return zap.NewNop(), func() error { return nil }, nil
	}
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogFile,
	})
}
