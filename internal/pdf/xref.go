package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

type entry struct {
	offset int64
	// For objects inside an object stream.
	container int
	index     int
	packed    bool
}

// file is a parsed PDF with lazily resolved objects.
type file struct {
	data    []byte
	xref    map[int]entry
	trailer dict
	cache   map[int]*object
	busy    map[int]bool
}

func newFile(data []byte) *file {
	return &file{
		data:  data,
		xref:  map[int]entry{},
		cache: map[int]*object{},
		busy:  map[int]bool{},
	}
}

// load reads the cross-reference data starting at the final startxref.
func (f *file) load() error {
	tail := f.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return errors.New("startxref not found")
	}
	s := &scanner{data: tail, pos: i + len("startxref")}
	s.skip()
	off, err := strconv.ParseInt(string(s.word()), 10, 64)
	if err != nil {
		return fmt.Errorf("startxref: %w", err)
	}
	seen := map[int64]bool{}
	for off > 0 || len(seen) == 0 {
		if seen[off] {
			return errors.New("cross-reference chain loops")
		}
		seen[off] = true
		if off < 0 || off >= int64(len(f.data)) {
			return fmt.Errorf("cross-reference offset %d out of range", off)
		}
		var t dict
		if t, err = f.section(int(off)); err != nil {
			return err
		}
		if f.trailer == nil {
			f.trailer = t
		}
		off, _ = t.integer("Prev")
	}
	return nil
}

// section parses one xref table or xref stream and returns its trailer.
// Entries already known from a newer section are kept.
func (f *file) section(off int) (dict, error) {
	s := &scanner{data: f.data, pos: off}
	if s.consume("xref") {
		return f.table(s)
	}
	s.pos = off
	o, err := f.indirect(s)
	if err != nil {
		return nil, err
	}
	if o.kind != kindStream || o.dict.name("Type") != "XRef" {
		return nil, fmt.Errorf("no cross-reference at offset %d", off)
	}
	return o.dict, f.stream(o)
}

func (f *file) table(s *scanner) (dict, error) {
	for {
		if s.consume("trailer") {
			break
		}
		first, err1 := strconv.Atoi(string(s.word()))
		s.skip()
		count, err2 := strconv.Atoi(string(s.word()))
		if err1 != nil || err2 != nil {
			return nil, errors.New("malformed cross-reference table")
		}
		for i := 0; i < count; i++ {
			s.skip()
			off, err := strconv.ParseInt(string(s.word()), 10, 64)
			s.skip()
			s.word() // generation
			s.skip()
			flag := s.word()
			if err != nil || len(flag) != 1 {
				return nil, errors.New("malformed cross-reference entry")
			}
			if _, known := f.xref[first+i]; !known && flag[0] == 'n' {
				f.xref[first+i] = entry{offset: off}
			}
		}
	}
	t, err := s.value()
	if err != nil {
		return nil, err
	}
	if t.kind != kindDict {
		return nil, errors.New("trailer is not a dictionary")
	}
	return t.dict, nil
}

func (f *file) stream(o *object) error {
	data, err := decode(o)
	if err != nil {
		return fmt.Errorf("cross-reference stream: %w", err)
	}
	w, ok := o.dict["W"]
	if !ok || w.kind != kindArray || len(w.items) < 3 {
		return errors.New("cross-reference stream without /W")
	}
	var widths [3]int
	for i := range widths {
		widths[i] = int(w.items[i].num)
	}
	size := widths[0] + widths[1] + widths[2]
	if size == 0 {
		return errors.New("cross-reference stream with zero-width entries")
	}

	var ranges []int64
	if idx, ok := o.dict["Index"]; ok && idx.kind == kindArray {
		for _, it := range idx.items {
			ranges = append(ranges, it.num)
		}
	} else {
		n, _ := o.dict.integer("Size")
		ranges = []int64{0, n}
	}

	pos := 0
	for r := 0; r+1 < len(ranges); r += 2 {
		for i := int64(0); i < ranges[r+1] && pos+size <= len(data); i++ {
			fields := [3]int64{1, 0, 0}
			for k, width := range widths {
				if width == 0 {
					continue
				}
				var v int64
				for _, b := range data[pos : pos+width] {
					v = v<<8 | int64(b)
				}
				fields[k] = v
				pos += width
			}
			num := int(ranges[r] + i)
			if _, known := f.xref[num]; known {
				continue
			}
			switch fields[0] {
			case 1:
				f.xref[num] = entry{offset: fields[1]}
			case 2:
				f.xref[num] = entry{packed: true, container: int(fields[1]), index: int(fields[2])}
			}
		}
	}
	return nil
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuild scans the whole file for object headers when the cross-reference
// data is missing or damaged. Later definitions win.
func (f *file) rebuild() error {
	f.xref = map[int]entry{}
	f.cache = map[int]*object{}
	for _, m := range objHeader.FindAllSubmatchIndex(f.data, -1) {
		num, err := strconv.Atoi(string(f.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		f.xref[num] = entry{offset: int64(m[2])}
	}
	if len(f.xref) == 0 {
		return errors.New("no objects found")
	}
	if f.trailer == nil {
		if i := bytes.LastIndex(f.data, []byte("trailer")); i >= 0 {
			s := &scanner{data: f.data, pos: i + len("trailer")}
			if t, err := s.value(); err == nil && t.kind == kindDict {
				f.trailer = t.dict
			}
		}
	}
	if _, ok := f.trailer["Root"]; !ok {
		for num := range f.xref {
			if o := f.get(num); o.kind == kindDict && o.dict.name("Type") == "Catalog" {
				f.trailer = dict{"Root": &object{kind: kindRef, ref: ref{num: num}}}
				break
			}
		}
	}
	return nil
}

// indirect parses "N G obj <value>" at the scanner position.
func (f *file) indirect(s *scanner) (*object, error) {
	s.skip()
	s.word()
	s.skip()
	s.word()
	if !s.consume("obj") {
		return nil, fmt.Errorf("expected object header at offset %d", s.pos)
	}
	return s.value()
}

// get returns object num, or null when it cannot be read.
func (f *file) get(num int) *object {
	if o, ok := f.cache[num]; ok {
		return o
	}
	e, ok := f.xref[num]
	if !ok || f.busy[num] {
		return null
	}
	f.busy[num] = true
	defer delete(f.busy, num)

	var o *object
	var err error
	if e.packed {
		o, err = f.packed(e)
	} else if e.offset >= 0 && e.offset < int64(len(f.data)) {
		o, err = f.indirect(&scanner{data: f.data, pos: int(e.offset)})
	} else {
		err = errors.New("offset out of range")
	}
	if err != nil {
		o = null
	}
	f.cache[num] = o
	return o
}

func (f *file) packed(e entry) (*object, error) {
	c := f.get(e.container)
	if c.kind != kindStream {
		return nil, errors.New("object stream missing")
	}
	data, err := decode(c)
	if err != nil {
		return nil, err
	}
	n, _ := c.dict.integer("N")
	first, _ := c.dict.integer("First")
	if int64(e.index) >= n {
		return nil, errors.New("object index out of range")
	}
	s := &scanner{data: data}
	var off int64
	for i := 0; i <= e.index; i++ {
		s.skip()
		s.word()
		s.skip()
		if off, err = strconv.ParseInt(string(s.word()), 10, 64); err != nil {
			return nil, err
		}
	}
	if first+off >= int64(len(data)) {
		return nil, errors.New("object offset out of range")
	}
	return (&scanner{data: data, pos: int(first + off)}).value()
}

func (f *file) resolve(o *object) *object {
	for i := 0; o != nil && o.kind == kindRef && i < maxDepth; i++ {
		o = f.get(o.ref.num)
	}
	if o == nil {
		return null
	}
	return o
}
