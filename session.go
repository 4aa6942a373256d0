package slicerpdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Session drives one dashboard in one browser process.
//
// A Session exports one entity at a time and is not safe for concurrent
// use; run one Session per worker goroutine instead. Call [Session.Close]
// to terminate the browser.
type Session struct {
	cfg     sessionConfig
	url     string
	log     *slog.Logger
	tabCtx  context.Context
	cancel  context.CancelFunc
	staging string

	mu     sync.Mutex
	closed bool
}

// NewSession launches a browser, opens dashboardURL and locates the report
// frame. The caller must call [Session.Close] when finished.
//
// ctx bounds the launch and the initial navigation only; the browser
// process itself lives until Close.
func NewSession(ctx context.Context, dashboardURL string, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	u, err := url.Parse(dashboardURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
		return nil, fmt.Errorf("slicerpdf: invalid dashboard URL %q", dashboardURL)
	}
	if cfg.mode == ExportDownload && cfg.locators.ExportButton == "" {
		return nil, errors.New("slicerpdf: download export requires an export button locator")
	}
	if err := cfg.waits.validate(); err != nil {
		return nil, err
	}

	tabCtx, cancel, err := startBrowser(&cfg)
	if err != nil {
		return nil, stepErr(KindInfrastructure, "launch browser", err)
	}
	s := &Session{
		cfg:    cfg,
		url:    dashboardURL,
		log:    cfg.logger,
		tabCtx: tabCtx,
		cancel: cancel,
	}

	if cfg.mode == ExportDownload {
		if err := s.prepareDownloads(); err != nil {
			s.Close()
			return nil, stepErr(KindInfrastructure, "prepare downloads", err)
		}
	}
	if err := s.open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close terminates the browser process and removes the download staging
// directory. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	if s.staging != "" {
		return os.RemoveAll(s.staging)
	}
	return nil
}

func (s *Session) checkClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// bind returns a context that carries the tab and is also canceled when
// ctx is done.
func (s *Session) bind(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) prepareDownloads() error {
	dir, err := os.MkdirTemp("", "slicerpdf-download-*")
	if err != nil {
		return err
	}
	s.staging = dir
	return chromedp.Run(s.tabCtx, browser.
		SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
}

// open navigates to the dashboard and, when the report is embedded in a
// frame, to the frame's own document.
func (s *Session) open(ctx context.Context) error {
	runCtx, stop := s.bind(ctx)
	defer stop()

	if err := s.navigate(runCtx, s.url); err != nil {
		return stepErr(KindInfrastructure, "navigate", err)
	}
	src := s.frameSource(runCtx)
	if src == "" {
		s.log.Debug("no report frame, using top-level page", "url", s.url)
		return nil
	}
	s.log.Debug("report frame found", "src", src)
	if err := s.navigate(runCtx, src); err != nil {
		return stepErr(KindInfrastructure, "navigate to report frame", err)
	}
	return nil
}

func (s *Session) navigate(ctx context.Context, target string) error {
	nctx, cancel := context.WithTimeout(ctx, s.cfg.waits.Navigation)
	defer cancel()
	return chromedp.Run(nctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// ExportEntity selects name in the slicer and exports the refreshed view.
//
// It never returns an error: every failure, including a panic in the
// browser driver, is reported as a failure Outcome. At most one PDF and one
// screenshot are written per call.
func (s *Session) ExportEntity(ctx context.Context, name string) (out Outcome) {
	start := time.Now()
	e := Entity{Name: name}
	log := s.log.With("entity", name)
	defer func() {
		if r := recover(); r != nil {
			log.Error("export panicked", "panic", r)
			out = Failed(e, stepErr(KindInfrastructure, "export", fmt.Errorf("panic: %v", r)))
		}
		out.Duration = time.Since(start)
	}()

	if err := s.checkClosed(); err != nil {
		return Failed(e, stepErr(KindInfrastructure, "session", err))
	}
	runCtx, stop := s.bind(ctx)
	defer stop()

	path, err := s.export(runCtx, e, log)
	if err == nil {
		log.Info("exported", "path", path)
		return Succeeded(e, path)
	}

	out = Failed(e, err)
	log.Warn("export failed", "kind", out.Kind, "error", err)
	if s.cfg.screenshots {
		out.ArtifactPath = s.screenshot(runCtx, e, log)
	}
	if out.Kind != KindInfrastructure && ctx.Err() == nil {
		// Start the next entity from a freshly loaded report.
		if rerr := s.open(ctx); rerr != nil {
			log.Warn("reloading dashboard failed", "error", rerr)
		}
	}
	return out
}

// export runs the selection and export steps for e and returns the path of
// the written PDF.
func (s *Session) export(ctx context.Context, e Entity, log *slog.Logger) (string, error) {
	key := e.Key()
	if key == "" {
		return "", stepErr(KindMatch, "normalize name", ErrEmptyName)
	}
	if err := s.openDropdown(ctx); err != nil {
		return "", err
	}
	if err := s.search(ctx, key); err != nil {
		return "", err
	}
	options, err := s.waitOptions(ctx)
	if err != nil {
		return "", err
	}
	idx, err := MatchOption(e.Name, options, s.cfg.fallbackSingle)
	if err != nil {
		return "", stepErr(KindMatch, "match option", fmt.Errorf("%w among %d options", err, len(options)))
	}
	log.Debug("option matched", "option", options[idx], "index", idx)
	if err := s.choose(ctx, idx); err != nil {
		return "", err
	}
	if err := s.waitRefresh(ctx, options[idx]); err != nil {
		return "", err
	}

	var data []byte
	if s.cfg.mode == ExportDownload {
		data, err = s.download(ctx)
	} else {
		data, err = s.print(ctx)
	}
	if err != nil {
		return "", err
	}
	return s.save(e, data)
}
