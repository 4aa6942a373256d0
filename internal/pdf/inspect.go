// Package pdf checks that exported files are readable PDF documents.
//
// It reads only the document structure: header, cross-reference data
// (classic tables and compressed streams), the catalog and the page tree.
// Content streams are never decoded.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMalformed is returned when data is not a usable PDF.
var ErrMalformed = errors.New("malformed PDF")

// Info summarizes a PDF document.
type Info struct {
	Version string
	Pages   int
	Size    int64
}

// Inspect parses data and counts its pages. A document without pages, or
// one truncated before its end-of-file marker, is reported as malformed.
func Inspect(data []byte) (Info, error) {
	info := Info{Size: int64(len(data))}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return info, fmt.Errorf("%w: missing %%PDF header", ErrMalformed)
	}
	v := (&scanner{data: data, pos: i + len("%PDF-")}).word()
	info.Version = strings.TrimSpace(string(v))

	tail := data
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return info, fmt.Errorf("%w: truncated, no %%%%EOF marker", ErrMalformed)
	}

	f := newFile(data)
	if err := f.load(); err != nil {
		if rerr := f.rebuild(); rerr != nil {
			return info, fmt.Errorf("%w: %v", ErrMalformed, errors.Join(err, rerr))
		}
	}
	n := f.pageCount()
	if n == 0 {
		if err := f.rebuild(); err == nil {
			n = f.pageCount()
		}
	}
	if n == 0 {
		return info, fmt.Errorf("%w: document has no pages", ErrMalformed)
	}
	info.Pages = n
	return info, nil
}

// InspectFile reads and inspects the PDF at path.
func InspectFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	return Inspect(data)
}

// pageCount walks the page tree from the catalog.
func (f *file) pageCount() int {
	root := f.resolve(f.trailer["Root"])
	if root.kind != kindDict {
		return 0
	}
	pages := f.resolve(root.dict["Pages"])
	if pages.kind != kindDict {
		return 0
	}
	return f.leaves(pages, map[*object]bool{})
}

func (f *file) leaves(node *object, seen map[*object]bool) int {
	if seen[node] || len(seen) > 1<<20 {
		return 0
	}
	seen[node] = true
	if node.dict.name("Type") == "Page" {
		return 1
	}
	kids := f.resolve(node.dict["Kids"])
	if kids.kind != kindArray {
		// A /Count without /Kids cannot be trusted.
		return 0
	}
	n := 0
	for _, k := range kids.items {
		if kid := f.resolve(k); kid.kind == kindDict {
			n += f.leaves(kid, seen)
		}
	}
	return n
}
