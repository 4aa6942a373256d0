package slicerpdf

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ExportMode selects how a Session turns the current view into a PDF.
type ExportMode string

const (
	// ExportPrint renders the page with Chrome's print-to-PDF.
	ExportPrint ExportMode = "print"
	// ExportDownload clicks the dashboard's own export control and collects
	// the downloaded file.
	ExportDownload ExportMode = "download"
)

// Waits holds the per-step wait budgets of a Session. Every field must be
// positive.
type Waits struct {
	IFrame         time.Duration
	DropdownOpen   time.Duration
	SearchDebounce time.Duration
	OptionsRender  time.Duration
	VisualRefresh  time.Duration
	RenderSettle   time.Duration
	Export         time.Duration
	Navigation     time.Duration
}

// DefaultWaits returns the budgets used when none are configured.
func DefaultWaits() Waits {
	return Waits{
		IFrame:         15 * time.Second,
		DropdownOpen:   10 * time.Second,
		SearchDebounce: 1 * time.Second,
		OptionsRender:  10 * time.Second,
		VisualRefresh:  30 * time.Second,
		RenderSettle:   2 * time.Second,
		Export:         60 * time.Second,
		Navigation:     60 * time.Second,
	}
}

func (w Waits) validate() error {
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"IFrame", w.IFrame},
		{"DropdownOpen", w.DropdownOpen},
		{"SearchDebounce", w.SearchDebounce},
		{"OptionsRender", w.OptionsRender},
		{"VisualRefresh", w.VisualRefresh},
		{"RenderSettle", w.RenderSettle},
		{"Export", w.Export},
		{"Navigation", w.Navigation},
	} {
		if f.d <= 0 {
			return fmt.Errorf("slicerpdf: wait %s must be positive, got %v", f.name, f.d)
		}
	}
	return nil
}

// Locators holds the CSS selectors a Session uses to find dashboard
// elements. IFrame, Restatement, Busy, Visual and ExportButton may be empty,
// which disables the corresponding behavior.
type Locators struct {
	IFrame       string
	Dropdown     string
	SearchInput  string
	OptionItem   string
	OptionText   string
	Restatement  string
	Busy         string
	Visual       string
	ExportButton string
}

// DefaultLocators returns selectors for an embedded Power BI report with a
// dropdown slicer.
func DefaultLocators() Locators {
	return Locators{
		IFrame:      "iframe[src*='powerbi']",
		Dropdown:    ".slicer-dropdown-menu, .slicer-restatement",
		SearchInput: "input.searchInput",
		OptionItem:  "div.slicerItemContainer",
		OptionText:  "span.slicerText",
		Restatement: ".slicer-restatement",
		Busy:        ".powerbi-spinner, .circle-spinner",
		Visual:      ".visual-container, .visualContainer",
	}
}

// sessionConfig holds internal configuration for a Session.
type sessionConfig struct {
	chromePath   string
	noSandbox    bool
	autoDownload bool
	headless     bool
	windowWidth  int
	windowHeight int

	logger       *slog.Logger
	waits        Waits
	locators     Locators
	pollInterval time.Duration

	mode           ExportMode
	page           *PageConfig
	layout         Layout
	screenshots    bool
	fallbackSingle bool
}

func defaultConfig() sessionConfig {
	return sessionConfig{
		headless:     true,
		windowWidth:  1920,
		windowHeight: 1080,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		waits:        DefaultWaits(),
		locators:     DefaultLocators(),
		pollInterval: 250 * time.Millisecond,
		mode:         ExportPrint,
		layout:       FlatLayout("."),
	}
}

// Option configures a [Session].
type Option func(*sessionConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *sessionConfig) {
		c.chromePath = path
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *sessionConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a Chromium build when no executable path is set.
// The binary is cached and reused by later sessions.
func WithAutoDownload() Option {
	return func(c *sessionConfig) {
		c.autoDownload = true
	}
}

// WithHeadless controls whether the browser runs without a window.
// Defaults to true.
func WithHeadless(on bool) Option {
	return func(c *sessionConfig) {
		c.headless = on
	}
}

// WithWindowSize sets the browser viewport. Defaults to 1920x1080.
func WithWindowSize(width, height int) Option {
	return func(c *sessionConfig) {
		if width > 0 && height > 0 {
			c.windowWidth, c.windowHeight = width, height
		}
	}
}

// WithLogger sets the logger for step-level diagnostics. By default nothing
// is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWaits replaces the per-step wait budgets.
func WithWaits(w Waits) Option {
	return func(c *sessionConfig) {
		c.waits = w
	}
}

// WithLocators replaces the element selectors.
func WithLocators(l Locators) Option {
	return func(c *sessionConfig) {
		c.locators = l
	}
}

// WithPollInterval sets how often wait conditions are re-evaluated.
func WithPollInterval(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithExportMode selects print or download export. Defaults to [ExportPrint].
func WithExportMode(m ExportMode) Option {
	return func(c *sessionConfig) {
		c.mode = m
	}
}

// WithPageConfig sets the paper layout used in [ExportPrint] mode.
// If nil, [DefaultPageConfig] values are used.
func WithPageConfig(p *PageConfig) Option {
	return func(c *sessionConfig) {
		c.page = p
	}
}

// WithLayout sets where PDFs and screenshots are written.
func WithLayout(l Layout) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.layout = l
		}
	}
}

// WithScreenshots enables a full-page screenshot on every failed export.
func WithScreenshots(on bool) Option {
	return func(c *sessionConfig) {
		c.screenshots = on
	}
}

// WithSingleCandidateFallback selects the only visible option when a search
// yields exactly one candidate that does not match exactly. Off by default.
func WithSingleCandidateFallback(on bool) Option {
	return func(c *sessionConfig) {
		c.fallbackSingle = on
	}
}
