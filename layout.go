package slicerpdf

import (
	"path/filepath"

	"github.com/porticus-lab/go-slicer-pdf/internal/naming"
)

// Layout decides where a Session writes the PDF and the failure screenshot
// of an entity. Implementations must return distinct paths for distinct
// names.
type Layout interface {
	PDFPath(name string) string
	ScreenshotPath(name string) string
}

// FlatLayout writes <dir>/<name>.pdf and <dir>/screenshots/<name>.png with
// names sanitized for the filesystem.
type FlatLayout string

func (d FlatLayout) PDFPath(name string) string {
	return filepath.Join(string(d), naming.Sanitize(name)+".pdf")
}

func (d FlatLayout) ScreenshotPath(name string) string {
	return filepath.Join(string(d), naming.ScreenshotDir, naming.Sanitize(name)+".png")
}
