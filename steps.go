package slicerpdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// optionAttr tags the visible options of the latest listing so that the
// chosen one can be clicked by index.
const optionAttr = "data-slicerpdf-option"

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// failKind classifies a browser error raised outside a bounded wait.
func failKind(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrWaitTimeout) {
		return KindTimeout
	}
	return KindInfrastructure
}

const visibleJS = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const r = el.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
})()`

func (s *Session) visible(ctx context.Context, sel string) (bool, error) {
	var ok bool
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(visibleJS, jsString(sel)), &ok))
	return ok, err
}

const frameJS = `(() => {
	const el = document.querySelector(%s);
	return el && el.src ? el.src : "";
})()`

// frameSource returns the absolute URL of the report frame, or "" when no
// frame locator is set or none appears within the IFrame budget.
func (s *Session) frameSource(ctx context.Context) string {
	sel := s.cfg.locators.IFrame
	if sel == "" {
		return ""
	}
	var src string
	err := Poll(ctx, s.cfg.waits.IFrame, s.cfg.pollInterval, func(ctx context.Context) (bool, error) {
		if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(frameJS, jsString(sel)), &src)); err != nil {
			return false, err
		}
		return src != "", nil
	})
	if err != nil {
		return ""
	}
	return src
}

// openDropdown makes the slicer's search input visible. It does nothing when
// the input is already shown, and retries the click once.
func (s *Session) openDropdown(ctx context.Context) error {
	loc, w := s.cfg.locators, s.cfg.waits
	if ok, _ := s.visible(ctx, loc.SearchInput); ok {
		return nil
	}
	var err error
	for try := 0; try < 2; try++ {
		cctx, cancel := context.WithTimeout(ctx, w.DropdownOpen)
		err = chromedp.Run(cctx, chromedp.Click(loc.Dropdown, chromedp.ByQuery))
		cancel()
		if err != nil {
			continue
		}
		err = Poll(ctx, w.DropdownOpen, s.cfg.pollInterval, func(ctx context.Context) (bool, error) {
			return s.visible(ctx, loc.SearchInput)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return stepErr(failKind(err), "open dropdown", err)
}

// search replaces the slicer's search text with key.
func (s *Session) search(ctx context.Context, key string) error {
	sel := s.cfg.locators.SearchInput
	sctx, cancel := context.WithTimeout(ctx, s.cfg.waits.DropdownOpen)
	defer cancel()
	err := chromedp.Run(sctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, key+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return stepErr(failKind(err), "type search", err)
	}
	return nil
}

const optionsJS = `(() => {
	const attr = %s, textSel = %s;
	document.querySelectorAll('[' + attr + ']').forEach(el => el.removeAttribute(attr));
	const out = [];
	document.querySelectorAll(%s).forEach(el => {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return;
		const t = (textSel && el.querySelector(textSel)) || el;
		el.setAttribute(attr, String(out.length));
		out.push(t.textContent || t.getAttribute('title') || '');
	});
	return out;
})()`

func (s *Session) listOptions(ctx context.Context) ([]string, error) {
	loc := s.cfg.locators
	var texts []string
	js := fmt.Sprintf(optionsJS, jsString(optionAttr), jsString(loc.OptionText), jsString(loc.OptionItem))
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &texts))
	return texts, err
}

// waitOptions waits until the filtered option list is non-empty and has not
// changed for the search debounce window.
func (s *Session) waitOptions(ctx context.Context) ([]string, error) {
	w := s.cfg.waits
	var last []string
	err := PollStable(ctx, w.SearchDebounce+w.OptionsRender, s.cfg.pollInterval, w.SearchDebounce,
		func(ctx context.Context) (string, bool, error) {
			texts, err := s.listOptions(ctx)
			if err != nil {
				return "", false, err
			}
			last = texts
			return strings.Join(texts, "\x1f"), len(texts) > 0, nil
		})
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, ErrWaitTimeout) && len(last) == 0:
		return nil, stepErr(KindMatch, "list options", ErrNoMatch)
	}
	return nil, stepErr(failKind(err), "list options", err)
}

// choose clicks the option at idx of the latest listing, then clicks the
// page corner to commit the selection and close the dropdown.
func (s *Session) choose(ctx context.Context, idx int) error {
	sel := fmt.Sprintf("[%s=%q]", optionAttr, fmt.Sprint(idx))
	cctx, cancel := context.WithTimeout(ctx, s.cfg.waits.DropdownOpen)
	defer cancel()
	if err := chromedp.Run(cctx,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.MouseClickXY(5, 5),
	); err != nil {
		return stepErr(failKind(err), "select option", err)
	}
	return nil
}

type viewState struct {
	Restatement *string `json:"restatement"`
	Busy        bool    `json:"busy"`
	Visuals     int     `json:"visuals"`
	TextLength  int     `json:"text"`
}

const viewJS = `(() => {
	const all = sel => sel ? Array.from(document.querySelectorAll(sel)) : [];
	const shown = el => { const r = el.getBoundingClientRect(); return r.width > 0 && r.height > 0; };
	const rs = all(%s)[0];
	return {
		restatement: rs ? (rs.textContent || rs.getAttribute('title') || '') : null,
		busy: all(%s).some(shown),
		visuals: all(%s).length,
		text: document.body ? document.body.innerText.length : 0,
	};
})()`

// waitRefresh waits for the report to show chosen: the restatement must
// name it, no busy indicator may be visible, and the rendered view must be
// unchanged for the settle window.
func (s *Session) waitRefresh(ctx context.Context, chosen string) error {
	loc, w := s.cfg.locators, s.cfg.waits
	js := fmt.Sprintf(viewJS, jsString(loc.Restatement), jsString(loc.Busy), jsString(loc.Visual))
	var shown *string
	err := PollStable(ctx, w.VisualRefresh, s.cfg.pollInterval, w.RenderSettle,
		func(ctx context.Context) (string, bool, error) {
			var v viewState
			if err := chromedp.Run(ctx, chromedp.Evaluate(js, &v)); err != nil {
				return "", false, err
			}
			shown = v.Restatement
			selected := shown == nil || SameName(*shown, chosen)
			fp := fmt.Sprintf("%d/%d", v.Visuals, v.TextLength)
			return fp, selected && !v.Busy, nil
		})
	if err == nil {
		return nil
	}
	if shown != nil && !SameName(*shown, chosen) {
		err = fmt.Errorf("slicer shows %q instead of %q: %w", *shown, chosen, err)
	}
	return stepErr(failKind(err), "wait for refresh", err)
}
