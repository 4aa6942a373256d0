// Package config resolves the run configuration from defaults, an optional
// config file, SLICERPDF_* environment variables (a .env file included) and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/batch"
	"github.com/porticus-lab/go-slicer-pdf/internal/roster"
)

// EnvPrefix prefixes every environment variable, e.g. SLICERPDF_WORKERS or
// SLICERPDF_WAIT_VISUAL_REFRESH.
const EnvPrefix = "SLICERPDF"

// DefaultFile is the config file looked up in the working directory when
// none is given.
const DefaultFile = "slicerpdf.yaml"

// Chrome holds browser launch settings.
type Chrome struct {
	Path         string
	NoSandbox    bool
	AutoDownload bool
	Headless     bool
	Width        int
	Height       int
}

// Log holds logging settings.
type Log struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // empty logs to stderr
}

// Config is the resolved configuration of a run.
type Config struct {
	URL string

	Input    string
	Column   string
	Failures string

	OutputRoot string
	Prefix     string

	Workers       int
	MaxAttempts   int
	MaxRelaunches int
	Limit         int
	FailuresOnly  bool
	Dedupe        bool

	FallbackSingle bool
	Screenshots    bool
	Journal        string

	Mode         slicerpdf.ExportMode
	Page         slicerpdf.PageConfig
	Waits        slicerpdf.Waits
	Locators     slicerpdf.Locators
	PollInterval time.Duration

	Chrome Chrome
	Log    Log
}

// waitKeys maps config keys to the wait budgets they set.
var waitKeys = []struct {
	key string
	get func(*slicerpdf.Waits) *time.Duration
}{
	{"wait.iframe", func(w *slicerpdf.Waits) *time.Duration { return &w.IFrame }},
	{"wait.dropdown-open", func(w *slicerpdf.Waits) *time.Duration { return &w.DropdownOpen }},
	{"wait.search-debounce", func(w *slicerpdf.Waits) *time.Duration { return &w.SearchDebounce }},
	{"wait.options-render", func(w *slicerpdf.Waits) *time.Duration { return &w.OptionsRender }},
	{"wait.visual-refresh", func(w *slicerpdf.Waits) *time.Duration { return &w.VisualRefresh }},
	{"wait.render-settle", func(w *slicerpdf.Waits) *time.Duration { return &w.RenderSettle }},
	{"wait.export", func(w *slicerpdf.Waits) *time.Duration { return &w.Export }},
	{"wait.navigation", func(w *slicerpdf.Waits) *time.Duration { return &w.Navigation }},
}

var locatorKeys = []struct {
	key string
	get func(*slicerpdf.Locators) *string
}{
	{"locator.iframe", func(l *slicerpdf.Locators) *string { return &l.IFrame }},
	{"locator.dropdown", func(l *slicerpdf.Locators) *string { return &l.Dropdown }},
	{"locator.search-input", func(l *slicerpdf.Locators) *string { return &l.SearchInput }},
	{"locator.option-item", func(l *slicerpdf.Locators) *string { return &l.OptionItem }},
	{"locator.option-text", func(l *slicerpdf.Locators) *string { return &l.OptionText }},
	{"locator.restatement", func(l *slicerpdf.Locators) *string { return &l.Restatement }},
	{"locator.busy", func(l *slicerpdf.Locators) *string { return &l.Busy }},
	{"locator.visual", func(l *slicerpdf.Locators) *string { return &l.Visual }},
	{"locator.export-button", func(l *slicerpdf.Locators) *string { return &l.ExportButton }},
}

// New returns a viper instance with every default set and environment
// lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("url", "")
	v.SetDefault("input", "")
	v.SetDefault("column", roster.DefaultColumn)
	v.SetDefault("failures", "")
	v.SetDefault("output", "output")
	v.SetDefault("prefix", "report")
	v.SetDefault("workers", 1)
	v.SetDefault("max-attempts", 3)
	v.SetDefault("max-relaunches", batch.DefaultMaxRelaunches)
	v.SetDefault("limit", 0)
	v.SetDefault("failures-only", false)
	v.SetDefault("dedupe", true)
	v.SetDefault("fallback-single", false)
	v.SetDefault("screenshots", true)
	v.SetDefault("journal", "")
	v.SetDefault("export-mode", string(slicerpdf.ExportPrint))
	v.SetDefault("poll-interval", "250ms")

	page := slicerpdf.DefaultPageConfig()
	v.SetDefault("page.size", "A4")
	v.SetDefault("page.orientation", "portrait")
	v.SetDefault("page.margin", page.Margin.Top)
	v.SetDefault("page.scale", page.Scale)
	v.SetDefault("page.background", page.PrintBackground)

	v.SetDefault("chrome.path", "")
	v.SetDefault("chrome.no-sandbox", false)
	v.SetDefault("chrome.auto-download", false)
	v.SetDefault("chrome.headless", true)
	v.SetDefault("chrome.width", 1920)
	v.SetDefault("chrome.height", 1080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	waits, locators := slicerpdf.DefaultWaits(), slicerpdf.DefaultLocators()
	for _, w := range waitKeys {
		v.SetDefault(w.key, w.get(&waits).String())
	}
	for _, l := range locatorKeys {
		v.SetDefault(l.key, *l.get(&locators))
	}
	return v
}

// BindFlags binds each flag to the config key of the same name, with the
// first hyphen of "wait-", "locator-", "page-", "chrome-" and "log-" flags
// read as a dot: --wait-visual-refresh sets wait.visual-refresh.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" {
			return
		}
		if err := v.BindPFlag(KeyForFlag(f.Name), f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// KeyForFlag returns the config key a flag name is bound to.
func KeyForFlag(name string) string {
	for _, group := range []string{"wait", "locator", "page", "chrome", "log"} {
		if rest, ok := strings.CutPrefix(name, group+"-"); ok {
			return group + "." + rest
		}
	}
	return name
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ReadFile reads path into v. With an empty path, DefaultFile is read if it
// exists in the working directory.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return nil
		}
		path = DefaultFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Load resolves v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		URL:            strings.TrimSpace(v.GetString("url")),
		Input:          v.GetString("input"),
		Column:         v.GetString("column"),
		Failures:       v.GetString("failures"),
		OutputRoot:     v.GetString("output"),
		Prefix:         v.GetString("prefix"),
		Workers:        v.GetInt("workers"),
		MaxAttempts:    v.GetInt("max-attempts"),
		MaxRelaunches:  v.GetInt("max-relaunches"),
		Limit:          v.GetInt("limit"),
		FailuresOnly:   v.GetBool("failures-only"),
		Dedupe:         v.GetBool("dedupe"),
		FallbackSingle: v.GetBool("fallback-single"),
		Screenshots:    v.GetBool("screenshots"),
		Journal:        v.GetString("journal"),
		Mode:           slicerpdf.ExportMode(strings.ToLower(v.GetString("export-mode"))),
		PollInterval:   v.GetDuration("poll-interval"),
		Chrome: Chrome{
			Path:         v.GetString("chrome.path"),
			NoSandbox:    v.GetBool("chrome.no-sandbox"),
			AutoDownload: v.GetBool("chrome.auto-download"),
			Headless:     v.GetBool("chrome.headless"),
			Width:        v.GetInt("chrome.width"),
			Height:       v.GetInt("chrome.height"),
		},
		Log: LoadLog(v),
	}
	if c.Failures == "" {
		c.Failures = filepath.Join(c.OutputRoot, "failed.csv")
	}
	for _, w := range waitKeys {
		*w.get(&c.Waits) = v.GetDuration(w.key)
	}
	for _, l := range locatorKeys {
		*l.get(&c.Locators) = v.GetString(l.key)
	}

	size, err := slicerpdf.ParsePageSize(v.GetString("page.size"))
	if err != nil {
		return c, err
	}
	orient, err := slicerpdf.ParseOrientation(v.GetString("page.orientation"))
	if err != nil {
		return c, err
	}
	c.Page = slicerpdf.PageConfig{
		Size:            size,
		Orientation:     orient,
		Margin:          slicerpdf.UniformMargin(v.GetFloat64("page.margin")),
		Scale:           v.GetFloat64("page.scale"),
		PrintBackground: v.GetBool("page.background"),
	}
	return c, c.Validate()
}

// LoadLog resolves only the log settings, for commands that need no
// dashboard.
func LoadLog(v *viper.Viper) Log {
	return Log{
		Level:  strings.ToLower(v.GetString("log.level")),
		Format: strings.ToLower(v.GetString("log.format")),
		File:   v.GetString("log.file"),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if c.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL, got %q", c.URL)
	}
	if !c.FailuresOnly && c.Input == "" {
		return errors.New("input list is required unless failures-only is set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max-attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.MaxRelaunches < 0 {
		return fmt.Errorf("max-relaunches must not be negative, got %d", c.MaxRelaunches)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if c.OutputRoot == "" || c.Prefix == "" {
		return errors.New("output and prefix must not be empty")
	}
	for _, w := range waitKeys {
		if d := *w.get(&c.Waits); d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", w.key, d)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive, got %s", c.PollInterval)
	}
	if c.Locators.Dropdown == "" || c.Locators.SearchInput == "" || c.Locators.OptionItem == "" {
		return errors.New("locator.dropdown, locator.search-input and locator.option-item are required")
	}
	switch c.Mode {
	case slicerpdf.ExportPrint:
	case slicerpdf.ExportDownload:
		if c.Locators.ExportButton == "" {
			return errors.New("export-mode download requires locator.export-button")
		}
	default:
		return fmt.Errorf("unknown export-mode %q", c.Mode)
	}
	if err := c.Page.Validate(); err != nil {
		return err
	}
	if c.Chrome.Width < 1 || c.Chrome.Height < 1 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Chrome.Width, c.Chrome.Height)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// SessionOptions translates c into options for [slicerpdf.NewSession].
// The caller adds the logger and layout.
func (c Config) SessionOptions() []slicerpdf.Option {
	page := c.Page
	opts := []slicerpdf.Option{
		slicerpdf.WithHeadless(c.Chrome.Headless),
		slicerpdf.WithWindowSize(c.Chrome.Width, c.Chrome.Height),
		slicerpdf.WithWaits(c.Waits),
		slicerpdf.WithLocators(c.Locators),
		slicerpdf.WithPollInterval(c.PollInterval),
		slicerpdf.WithExportMode(c.Mode),
		slicerpdf.WithPageConfig(&page),
		slicerpdf.WithScreenshots(c.Screenshots),
		slicerpdf.WithSingleCandidateFallback(c.FallbackSingle),
	}
	if c.Chrome.Path != "" {
		opts = append(opts, slicerpdf.WithChromePath(c.Chrome.Path))
	}
	if c.Chrome.NoSandbox {
		opts = append(opts, slicerpdf.WithNoSandbox())
	}
	if c.Chrome.AutoDownload {
		opts = append(opts, slicerpdf.WithAutoDownload())
	}
	return opts
}
