// Package roster reads and writes entity lists: the primary input list and
// the failure list carried between runs. Both are CSV files with a header
// row; entity names are taken from one named column.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/atomicfile"
)

// DefaultColumn is the header of the entity name column.
const DefaultColumn = "name"

// ErrNoColumn is returned when the header row lacks the name column.
var ErrNoColumn = errors.New("name column not found")

const bom = "\uFEFF"

// Parse reads entity names from CSV data. The column is matched
// case-insensitively against the header row; a leading UTF-8 byte order
// mark is ignored. Rows whose cell is empty are skipped, all other cells
// are kept verbatim.
func Parse(r io.Reader, column string) ([]slicerpdf.Entity, error) {
	if column == "" {
		column = DefaultColumn
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := -1
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		if strings.EqualFold(strings.TrimSpace(h), column) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: want %q, have %q", ErrNoColumn, column, header)
	}

	var out []slicerpdf.Entity
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			continue
		}
		out = append(out, slicerpdf.Entity{Name: rec[col]})
	}
}

// Read parses the CSV file at path.
func Read(path, column string) ([]slicerpdf.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entities, err := Parse(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entities, nil
}

// Encode writes entities as a one-column CSV with the given header.
func Encode(w io.Writer, column string, entities []slicerpdf.Entity) error {
	if column == "" {
		column = DefaultColumn
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{column}); err != nil {
		return err
	}
	for _, e := range entities {
		if err := cw.Write([]string{e.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FailureList is the persisted list of entities without a successful
// export. Only the retry loop writes it, once per attempt.
type FailureList struct {
	Path   string
	Column string
}

// Load returns the persisted failures. A missing file is an empty list.
func (f FailureList) Load() ([]slicerpdf.Entity, error) {
	entities, err := Read(f.Path, f.Column)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entities, err
}

// Save replaces the persisted list with entities. Readers never observe a
// partially written file.
func (f FailureList) Save(entities []slicerpdf.Entity) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f.Column, entities); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(f.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("saving failure list: %w", err)
	}
	return nil
}

// LockPath is the advisory lock file guarding the list.
func (f FailureList) LockPath() string {
	return f.Path + ".lock"
}

// Merge concatenates lists in order and drops repeated entities, keeping
// the first occurrence. With normalized set, names are compared by
// [slicerpdf.Entity.Key]; otherwise only identical raw names are repeats.
// Names that normalize to "" are always compared raw.
func Merge(normalized bool, lists ...[]slicerpdf.Entity) []slicerpdf.Entity {
	seen := map[string]bool{}
	var out []slicerpdf.Entity
	for _, list := range lists {
		for _, e := range list {
			k := "raw:" + e.Name
			if normalized {
				if key := e.Key(); key != "" {
					k = "key:" + key
				}
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}
