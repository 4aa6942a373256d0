package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/porticus-lab/go-slicer-pdf/internal/atomicfile"
	"github.com/porticus-lab/go-slicer-pdf/internal/pdf"
)

// InventoryFile is the name verify writes its inventory to.
const InventoryFile = "exported.csv"

// Artifact is one PDF found in a run directory.
type Artifact struct {
	File  string // relative to the run directory
	Pages int
	Bytes int64
	Err   error
}

// Scan inspects every PDF directly inside dir, in name order.
func Scan(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		a := Artifact{File: e.Name()}
		info, err := pdf.InspectFile(filepath.Join(dir, e.Name()))
		a.Pages, a.Bytes, a.Err = info.Pages, info.Size, err
		if err != nil {
			if fi, serr := e.Info(); serr == nil {
				a.Bytes = fi.Size()
			}
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Artifact) int { return strings.Compare(a.File, b.File) })
	return out, nil
}

// WriteInventory writes artifacts to dir/exported.csv.
func WriteInventory(dir string, artifacts []Artifact) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"file", "pages", "bytes", "status"})
	for _, a := range artifacts {
		status := "ok"
		if a.Err != nil {
			status = "invalid: " + a.Err.Error()
		}
		_ = w.Write([]string{a.File, strconv.Itoa(a.Pages), strconv.FormatInt(a.Bytes, 10), status})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicfile.WriteFile(filepath.Join(dir, InventoryFile), buf.Bytes(), 0o644)
}

// CrossCheck compares the artifacts on disk with the manifest and returns
// one line per discrepancy: an invalid PDF, an exported entity whose file
// is missing, or a PDF the manifest does not mention.
func CrossCheck(m Manifest, artifacts []Artifact) []string {
	var problems []string
	onDisk := map[string]Artifact{}
	for _, a := range artifacts {
		onDisk[a.File] = a
		if a.Err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", a.File, a.Err))
		}
	}
	listed := map[string]bool{}
	for _, e := range m.Exported() {
		listed[e.Artifact] = true
		if _, ok := onDisk[e.Artifact]; !ok {
			problems = append(problems, fmt.Sprintf("%s: exported as %s but missing", e.Name, e.Artifact))
		}
	}
	for _, a := range artifacts {
		if !listed[a.File] {
			problems = append(problems, fmt.Sprintf("%s: not in %s", a.File, ManifestFile))
		}
	}
	return problems
}
