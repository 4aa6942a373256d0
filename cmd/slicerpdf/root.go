package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/porticus-lab/go-slicer-pdf/internal/config"
)

// cli holds state shared by the subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	log     *slog.Logger
	closers []io.Closer
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{v: config.New()}
	root := &cobra.Command{
		Use:           "slicerpdf",
		Short:         "Export one PDF per entity from a sliced dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(c.envFile); err != nil {
				return fmt.Errorf("loading %s: %w", c.envFile, err)
			}
			if err := config.BindFlags(c.v, cmd.Flags()); err != nil {
				return err
			}
			return config.ReadFile(c.v, c.cfgFile)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading SLICERPDF_* variables")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	pf.String("journal", "", "SQLite journal of runs and outcomes")

	root.AddCommand(newRunCmd(c), newVerifyCmd(c), newHistoryCmd(c))
	return root, c
}

// close releases the log file. It runs whether or not the command failed,
// since cobra skips post-run hooks after an error.
func (c *cli) close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
	c.closers = nil
}

// setupLogger builds the process logger from the log.* settings.
func (c *cli) setupLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		c.closers = append(c.closers, lj)
		w = lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	c.log = slog.New(h)
	slog.SetDefault(c.log)
	return c.log
}
