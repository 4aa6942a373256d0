package slicerpdf

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/page"
)

// PageSize represents paper dimensions in centimeters.
type PageSize struct {
	Width  float64
	Height float64
}

// Standard paper sizes.
var (
	A3      = PageSize{Width: 29.7, Height: 42.0}
	A4      = PageSize{Width: 21.0, Height: 29.7}
	Letter  = PageSize{Width: 21.59, Height: 27.94}
	Legal   = PageSize{Width: 21.59, Height: 35.56}
	Tabloid = PageSize{Width: 27.94, Height: 43.18}
)

var pageSizes = map[string]PageSize{
	"a3":      A3,
	"a4":      A4,
	"letter":  Letter,
	"legal":   Legal,
	"tabloid": Tabloid,
}

// ParsePageSize resolves a paper name such as "A4" or "letter".
func ParsePageSize(name string) (PageSize, error) {
	s, ok := pageSizes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return PageSize{}, fmt.Errorf("slicerpdf: unknown paper size %q", name)
	}
	return s, nil
}

// Orientation represents the page orientation.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

// ParseOrientation resolves "portrait" or "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait":
		return Portrait, nil
	case "landscape":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("slicerpdf: unknown orientation %q", s)
}

// Margin represents page margins in centimeters.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargin returns a Margin with the same value on all sides.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// PageConfig controls the paper layout of print-mode exports.
//
// A nil PageConfig or zero-value fields fall back to A4 portrait with 1 cm
// margins at scale 1.0. PrintBackground is taken as given.
type PageConfig struct {
	Size        PageSize
	Orientation Orientation
	Margin      Margin

	// Scale of the rendering, between 0.1 and 2.0.
	Scale float64

	// PrintBackground keeps chart fills and background colors.
	PrintBackground bool
}

// DefaultPageConfig returns A4 portrait with backgrounds, the layout
// dashboard exports use when nothing else is configured.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:            A4,
		Orientation:     Portrait,
		Margin:          UniformMargin(1.0),
		Scale:           1.0,
		PrintBackground: true,
	}
}

// Validate reports an out-of-range scale or a negative dimension.
func (p PageConfig) Validate() error {
	if p.Scale != 0 && (p.Scale < 0.1 || p.Scale > 2.0) {
		return fmt.Errorf("slicerpdf: scale %v outside [0.1, 2.0]", p.Scale)
	}
	if p.Size.Width < 0 || p.Size.Height < 0 {
		return fmt.Errorf("slicerpdf: negative paper size %+v", p.Size)
	}
	m := p.Margin
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("slicerpdf: negative margin %+v", m)
	}
	return nil
}

// resolved returns a PageConfig with all zero values replaced by defaults.
func (p *PageConfig) resolved() PageConfig {
	d := DefaultPageConfig()
	if p == nil {
		return d
	}
	r := *p
	if r.Size == (PageSize{}) {
		r.Size = d.Size
	}
	if r.Scale <= 0 {
		r.Scale = d.Scale
	}
	if r.Margin == (Margin{}) {
		r.Margin = d.Margin
	}
	return r
}

func cmToInches(cm float64) float64 {
	return cm / 2.54
}

// printParams builds the Page.printToPDF command for p. Paper dimensions are
// always portrait; Chrome applies the orientation.
func (p *PageConfig) printParams() *page.PrintToPDFParams {
	r := p.resolved()
	return page.PrintToPDF().
		WithPaperWidth(cmToInches(r.Size.Width)).
		WithPaperHeight(cmToInches(r.Size.Height)).
		WithLandscape(r.Orientation == Landscape).
		WithMarginTop(cmToInches(r.Margin.Top)).
		WithMarginRight(cmToInches(r.Margin.Right)).
		WithMarginBottom(cmToInches(r.Margin.Bottom)).
		WithMarginLeft(cmToInches(r.Margin.Left)).
		WithScale(r.Scale).
		WithPrintBackground(r.PrintBackground)
}
