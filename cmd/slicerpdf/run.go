package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/batch"
	"github.com/porticus-lab/go-slicer-pdf/internal/config"
	"github.com/porticus-lab/go-slicer-pdf/internal/journal"
	"github.com/porticus-lab/go-slicer-pdf/internal/naming"
	"github.com/porticus-lab/go-slicer-pdf/internal/report"
	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
	"github.com/porticus-lab/go-slicer-pdf/internal/roster"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export every entity of the input list and retry failures",
		Long: `run reads the entity list, adds the entities left failing by earlier runs,
and exports one PDF per entity into a fresh directory under --output.
Failed entities are retried up to --max-attempts times; whatever still fails
is kept in the failure list for the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("url", "", "dashboard URL (required)")
	f.StringP("input", "i", "", "CSV list of entities")
	f.String("column", roster.DefaultColumn, "header of the entity name column")
	f.String("failures", "", "failure list carried between runs (default <output>/failed.csv)")
	f.StringP("output", "o", "output", "root directory for run directories")
	f.String("prefix", "report", "prefix of run directories and PDF names")
	f.IntP("workers", "w", 1, "concurrent browser sessions")
	f.Int("max-attempts", 3, "attempts per run")
	f.Int("max-relaunches", batch.DefaultMaxRelaunches, "browser relaunches per worker after an infrastructure failure")
	f.Int("limit", 0, "process at most N entities (0 = all)")
	f.Bool("failures-only", false, "process only the failure list")
	f.Bool("dedupe", true, "merge entities whose names normalize equal")
	f.Bool("fallback-single", false, "accept a single non-matching search result")
	f.Bool("screenshots", true, "capture a screenshot on every failure")
	f.Bool("debug", false, "shorthand for --log-level=debug")
	f.String("export-mode", string(slicerpdf.ExportPrint), "print or download")
	f.Duration("poll-interval", 250*time.Millisecond, "how often waits re-check the page")

	page := slicerpdf.DefaultPageConfig()
	f.String("page-size", "A4", "paper size: A3, A4, Letter, Legal, Tabloid")
	f.String("page-orientation", "portrait", "portrait or landscape")
	f.Float64("page-margin", page.Margin.Top, "margin in centimeters")
	f.Float64("page-scale", page.Scale, "rendering scale, 0.1 to 2.0")
	f.Bool("page-background", page.PrintBackground, "print background graphics")

	f.String("chrome-path", "", "Chrome or Chromium executable")
	f.Bool("chrome-no-sandbox", false, "disable the Chrome sandbox (needed as root)")
	f.Bool("chrome-auto-download", false, "download Chromium when none is installed")
	f.Bool("chrome-headless", true, "run the browser without a window")
	f.Int("chrome-width", 1920, "window width")
	f.Int("chrome-height", 1080, "window height")

	w := slicerpdf.DefaultWaits()
	f.Duration("wait-iframe", w.IFrame, "budget for the report frame to appear")
	f.Duration("wait-dropdown-open", w.DropdownOpen, "budget for the slicer to open")
	f.Duration("wait-search-debounce", w.SearchDebounce, "quiet period after typing a search")
	f.Duration("wait-options-render", w.OptionsRender, "budget for search results to render")
	f.Duration("wait-visual-refresh", w.VisualRefresh, "budget for the report to refresh after a selection")
	f.Duration("wait-render-settle", w.RenderSettle, "quiet period before export")
	f.Duration("wait-export", w.Export, "budget for producing the PDF")
	f.Duration("wait-navigation", w.Navigation, "budget for loading the dashboard")

	l := slicerpdf.DefaultLocators()
	f.String("locator-iframe", l.IFrame, "CSS selector of the report frame")
	f.String("locator-dropdown", l.Dropdown, "CSS selector of the slicer dropdown")
	f.String("locator-search-input", l.SearchInput, "CSS selector of the slicer search box")
	f.String("locator-option-item", l.OptionItem, "CSS selector of a slicer option")
	f.String("locator-option-text", l.OptionText, "CSS selector of an option's label")
	f.String("locator-restatement", l.Restatement, "CSS selector of the slicer's current selection")
	f.String("locator-busy", l.Busy, "CSS selector of loading indicators")
	f.String("locator-visual", l.Visual, "CSS selector of report visuals")
	f.String("locator-export-button", l.ExportButton, "CSS selector of the export control (download mode)")
	return cmd
}

func (c *cli) run(ctx context.Context) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	if c.v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}
	log := c.setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	failures := roster.FailureList{Path: cfg.Failures, Column: cfg.Column}
	if err := os.MkdirAll(filepath.Dir(failures.Path), 0o755); err != nil {
		return err
	}
	lock := flock.New(failures.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", failures.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("another run is using %s", failures.Path)
	}
	defer lock.Unlock()

	started := time.Now()
	stamp := naming.Stamp(started)
	dir, err := naming.CreateRunDir(cfg.OutputRoot, cfg.Prefix, stamp)
	if err != nil {
		return err
	}
	rc := retry.RunContext{RunID: uuid.NewString(), OutputDir: dir, Stamp: stamp}
	log = log.With("run", rc.RunID)
	log.Info("run started", "dir", dir, "dashboard", cfg.URL, "workers", cfg.Workers)

	var layout *naming.Layout
	opts := cfg.SessionOptions()
	coord := &batch.Coordinator{
		Workers:       cfg.Workers,
		MaxRelaunches: cfg.MaxRelaunches,
		Logger:        log,
		Launch: func(ctx context.Context, slot batch.Slot) (batch.Exporter, error) {
			so := append(slices.Clone(opts),
				slicerpdf.WithLayout(layout.ForAttempt(slot.Attempt)),
				slicerpdf.WithLogger(log.With("worker", slot.Worker, "attempt", slot.Attempt)),
			)
			s, err := slicerpdf.NewSession(ctx, cfg.URL, so...)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}

	loop := &retry.Loop{
		Config: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			Dedupe:       cfg.Dedupe,
			FailuresOnly: cfg.FailuresOnly,
			Limit:        cfg.Limit,
		},
		Primary: func() ([]slicerpdf.Entity, error) {
			return roster.Read(cfg.Input, cfg.Column)
		},
		Failures: failures,
		Runner:   coord,
		Logger:   log,
		Prepared: func(rc retry.RunContext, working []slicerpdf.Entity) error {
			names := make([]string, len(working))
			for i, e := range working {
				names[i] = e.Name
			}
			layout = naming.NewLayout(rc.OutputDir, cfg.Prefix, rc.Stamp, names)
			return nil
		},
	}

	var jrnl *journal.Journal
	if cfg.Journal != "" {
		if jrnl, err = journal.Open(cfg.Journal); err != nil {
			return err
		}
		defer jrnl.Close()
		if err := jrnl.BeginRun(ctx, rc); err != nil {
			return err
		}
		loop.Recorder = jrnl
	}

	rep, runErr := loop.Run(ctx, rc)
	if jrnl != nil {
		status := rep.Status
		if status == "" {
			status = retry.Status("error")
		}
		if err := jrnl.FinishRun(context.WithoutCancel(ctx), rc.RunID, status); err != nil {
			log.Warn("finishing journal entry", "error", err)
		}
	}
	if len(rep.Attempts) == 0 && rep.Status == "" {
		// Nothing was attempted; drop the empty run directory.
		_ = os.Remove(dir)
		return runErr
	}

	m := report.NewManifest(rep, cfg.URL, dir, started)
	if err := report.WriteManifest(dir, m); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("writing manifest: %w", err))
	}
	if err := report.WriteSummary(os.Stdout, rep, report.UseColor(os.Stdout)); err != nil {
		log.Warn("writing summary", "error", err)
	}
	if rep.Status == retry.StatusPartial {
		log.Warn("entities left in failure list", "count", len(rep.Remaining), "path", failures.Path)
	}
	return runErr
}
