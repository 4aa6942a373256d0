package slicerpdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fsnotify/fsnotify"

	"github.com/porticus-lab/go-slicer-pdf/internal/atomicfile"
	"github.com/porticus-lab/go-slicer-pdf/internal/pdf"
)

// print renders the current view with Chrome's print-to-PDF.
func (s *Session) print(ctx context.Context) ([]byte, error) {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.waits.Export)
	defer cancel()

	var buf []byte
	err := chromedp.Run(pctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = s.cfg.page.printParams().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, stepErr(KindExport, "print to pdf", err)
	}
	return buf, nil
}

// download clicks the export control and waits for Chrome to finish
// writing a PDF into the staging directory.
func (s *Session) download(ctx context.Context) ([]byte, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.waits.Export)
	defer cancel()

	if err := emptyDir(s.staging); err != nil {
		return nil, stepErr(KindInfrastructure, "clear downloads", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, stepErr(KindInfrastructure, "watch downloads", err)
	}
	defer w.Close()
	if err := w.Add(s.staging); err != nil {
		return nil, stepErr(KindInfrastructure, "watch downloads", err)
	}

	if err := chromedp.Run(dctx, chromedp.Click(s.cfg.locators.ExportButton, chromedp.ByQuery)); err != nil {
		return nil, stepErr(KindExport, "click export", err)
	}

	path, err := awaitPDF(dctx, w, s.staging, s.cfg.pollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: no PDF downloaded after %s", ErrWaitTimeout, s.cfg.waits.Export)
		}
		return nil, stepErr(KindExport, "await download", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stepErr(KindExport, "read download", err)
	}
	if err := os.Remove(path); err != nil {
		s.log.Debug("removing staged download", "path", path, "error", err)
	}
	return data, nil
}

// awaitPDF returns the first completed .pdf in dir. Chrome writes to a
// temporary name and renames it when the download finishes, so a .pdf name
// only appears once the file is complete. The directory is also rescanned
// every interval in case an event was missed.
func awaitPDF(ctx context.Context, w *fsnotify.Watcher, dir string, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if p := findPDF(dir); p != "" {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return "", errors.New("download watcher closed")
			}
			if ev.Has(fsnotify.Create|fsnotify.Rename|fsnotify.Write) && isPDF(ev.Name) {
				if _, err := os.Stat(ev.Name); err == nil {
					return ev.Name, nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return "", errors.New("download watcher closed")
			}
			return "", err
		case <-ticker.C:
		}
	}
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func findPDF(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Type().IsRegular() && isPDF(e.Name()) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		errs = append(errs, os.RemoveAll(filepath.Join(dir, e.Name())))
	}
	return errors.Join(errs...)
}

// save validates data as a PDF and writes it to the entity's canonical
// path. An existing file at that path is left untouched.
func (s *Session) save(e Entity, data []byte) (string, error) {
	info, err := pdf.Inspect(data)
	if err != nil {
		return "", stepErr(KindExport, "validate pdf", fmt.Errorf("%w: %v", ErrNotPDF, err))
	}
	path := s.cfg.layout.PDFPath(e.Name)
	if err := atomicfile.WriteNew(path, data, 0o644); err != nil {
		if errors.Is(err, atomicfile.ErrExists) {
			err = fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", stepErr(KindExport, "write pdf", err)
	}
	s.log.Debug("pdf written", "path", path, "pages", info.Pages, "bytes", info.Size)
	return path, nil
}

// screenshot captures the page after a failure and returns the image path,
// or "" when no screenshot could be taken.
func (s *Session) screenshot(ctx context.Context, e Entity, log *slog.Logger) string {
	if ctx.Err() != nil {
		return ""
	}
	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(sctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		log.Warn("screenshot failed", "error", err)
		return ""
	}
	path := s.cfg.layout.ScreenshotPath(e.Name)
	if err := atomicfile.WriteNew(path, buf, 0o644); err != nil {
		log.Warn("saving screenshot failed", "path", path, "error", err)
		return ""
	}
	return path
}
