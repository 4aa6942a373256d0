package naming

import (
	"fmt"
	"path/filepath"
)

// ScreenshotDir is the subdirectory of a run directory holding failure
// screenshots.
const ScreenshotDir = "screenshots"

// Layout places the files of one run. It is immutable; [Layout.ForAttempt]
// returns a copy for a later attempt.
type Layout struct {
	dir     string
	prefix  string
	stamp   string
	attempt int
	stems   map[string]string
}

// NewLayout returns a Layout over dir with stems assigned once for the whole
// working set.
func NewLayout(dir, prefix, stamp string, names []string) *Layout {
	return &Layout{
		dir:     dir,
		prefix:  prefix,
		stamp:   stamp,
		attempt: 1,
		stems:   Assign(names),
	}
}

// ForAttempt returns a copy of l that numbers screenshots with attempt.
func (l *Layout) ForAttempt(attempt int) *Layout {
	c := *l
	c.attempt = attempt
	return &c
}

// Dir returns the run directory.
func (l *Layout) Dir() string { return l.dir }

// Stem returns the assigned stem of name, or its sanitized form when name
// was not part of the working set.
func (l *Layout) Stem(name string) string {
	if s, ok := l.stems[name]; ok {
		return s
	}
	return Sanitize(name)
}

// PDFPath returns <dir>/<prefix>_<stamp>_<stem>.pdf.
func (l *Layout) PDFPath(name string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s_%s.pdf", l.prefix, l.stamp, l.Stem(name)))
}

// ScreenshotPath returns <dir>/screenshots/<stem>_a<attempt>.png.
func (l *Layout) ScreenshotPath(name string) string {
	return filepath.Join(l.dir, ScreenshotDir, fmt.Sprintf("%s_a%d.png", l.Stem(name), l.attempt))
}
