package slicerpdf

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable.
func resolveBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("slicerpdf: downloading browser: %w", err)
	}
	return path, nil
}

// allocatorOptions returns the Chrome flags for one Session.
func (c *sessionConfig) allocatorOptions() ([]chromedp.ExecAllocatorOption, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(c.windowWidth, c.windowHeight),
	)
	if c.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	path := c.chromePath
	if path == "" && c.autoDownload {
		var err error
		if path, err = resolveBrowser(); err != nil {
			return nil, err
		}
	}
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if c.noSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts, nil
}

// startBrowser launches Chrome and returns a context bound to its first tab.
// The returned cancel func terminates the browser process.
func startBrowser(c *sessionConfig) (context.Context, context.CancelFunc, error) {
	opts, err := c.allocatorOptions()
	if err != nil {
		return nil, nil, err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("slicerpdf: starting browser: %w", err)
	}
	return tabCtx, cancel, nil
}
