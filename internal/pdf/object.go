package pdf

import (
	"bytes"
	"errors"
	"strconv"
)

type kind uint8

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindReal
	kindString
	kindName
	kindArray
	kindDict
	kindStream
	kindRef
	kindKeyword
)

// object is one parsed PDF value. Only the fields for its kind are set.
type object struct {
	kind   kind
	num    int64
	real   float64
	text   []byte // string, name or keyword
	items  []*object
	dict   dict
	stream []byte
	ref    ref
}

type ref struct {
	num, gen int
}

type dict map[string]*object

var null = &object{kind: kindNull}

func (d dict) integer(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	switch o.kind {
	case kindInt:
		return o.num, true
	case kindReal:
		return int64(o.real), true
	}
	return 0, false
}

func (d dict) name(key string) string {
	if o, ok := d[key]; ok && o.kind == kindName {
		return string(o.text)
	}
	return ""
}

const maxDepth = 64

var errDepth = errors.New("objects nested too deeply")

// scanner parses PDF objects from a byte slice.
type scanner struct {
	data  []byte
	pos   int
	depth int
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) eof() bool { return s.pos >= len(s.data) }

// skip advances over whitespace and comments.
func (s *scanner) skip() {
	for !s.eof() {
		c := s.data[s.pos]
		switch {
		case c == '%':
			for !s.eof() && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case isSpace(c):
			s.pos++
		default:
			return
		}
	}
}

// word reads a run of regular characters.
func (s *scanner) word() []byte {
	start := s.pos
	for !s.eof() && !isSpace(s.data[s.pos]) && !isDelim(s.data[s.pos]) {
		s.pos++
	}
	return s.data[start:s.pos]
}

func (s *scanner) consume(kw string) bool {
	s.skip()
	if bytes.HasPrefix(s.data[s.pos:], []byte(kw)) {
		s.pos += len(kw)
		return true
	}
	return false
}

// value parses one object at the current position.
func (s *scanner) value() (*object, error) {
	if s.depth >= maxDepth {
		return nil, errDepth
	}
	s.depth++
	defer func() { s.depth-- }()

	s.skip()
	if s.eof() {
		return null, nil
	}
	switch c := s.data[s.pos]; {
	case c == '(':
		return s.literal(), nil
	case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<':
		return s.dictionary()
	case c == '<':
		return s.hex(), nil
	case c == '/':
		s.pos++
		return &object{kind: kindName, text: unescapeName(s.word())}, nil
	case c == '[':
		return s.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return s.number(), nil
	case isDelim(c):
		s.pos++
		return null, nil
	}
	w := s.word()
	switch string(w) {
	case "null":
		return null, nil
	case "true":
		return &object{kind: kindBool, num: 1}, nil
	case "false":
		return &object{kind: kindBool}, nil
	}
	return &object{kind: kindKeyword, text: w}, nil
}

func (s *scanner) literal() *object {
	s.pos++
	var buf bytes.Buffer
	for depth := 1; !s.eof(); {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.eof() {
				break
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if !s.eof() && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && !s.eof() && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return &object{kind: kindString, text: buf.Bytes()}
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return &object{kind: kindString, text: buf.Bytes()}
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func (s *scanner) hex() *object {
	s.pos++
	var out []byte
	var hi byte
	half := false
	for !s.eof() {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		v, ok := hexDigit(c)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return &object{kind: kindString, text: out}
}

func unescapeName(w []byte) []byte {
	if bytes.IndexByte(w, '#') < 0 {
		return w
	}
	out := make([]byte, 0, len(w))
	for i := 0; i < len(w); i++ {
		if w[i] == '#' && i+2 < len(w) {
			hi, ok1 := hexDigit(w[i+1])
			lo, ok2 := hexDigit(w[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, w[i])
	}
	return out
}

func (s *scanner) array() (*object, error) {
	s.pos++
	a := &object{kind: kindArray}
	for {
		s.skip()
		if s.eof() {
			return a, nil
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return a, nil
		}
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		a.items = append(a.items, v)
	}
}

func (s *scanner) dictionary() (*object, error) {
	s.pos += 2
	d := dict{}
	for {
		s.skip()
		if s.eof() {
			break
		}
		if bytes.HasPrefix(s.data[s.pos:], []byte(">>")) {
			s.pos += 2
			break
		}
		if s.data[s.pos] != '/' {
			s.pos++
			continue
		}
		s.pos++
		key := string(unescapeName(s.word()))
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		d[key] = v
	}

	save := s.pos
	if !s.consume("stream") {
		s.pos = save
		return &object{kind: kindDict, dict: d}, nil
	}
	if !s.eof() && s.data[s.pos] == '\r' {
		s.pos++
	}
	if !s.eof() && s.data[s.pos] == '\n' {
		s.pos++
	}
	start := s.pos
	// An indirect /Length is not resolved here; such streams run to
	// "endstream".
	var end int
	if n, ok := d.integer("Length"); ok && n >= 0 && start+int(n) <= len(s.data) {
		end = start + int(n)
	} else if i := bytes.Index(s.data[start:], []byte("endstream")); i >= 0 {
		end = start + i
	} else {
		end = len(s.data)
	}
	s.pos = end
	s.consume("endstream")
	return &object{kind: kindStream, dict: d, stream: s.data[start:end]}, nil
}

// number parses an integer, a real, or an indirect reference "N G R".
func (s *scanner) number() *object {
	w := s.word()
	n, err := strconv.ParseInt(string(w), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(w), 64)
		if ferr != nil {
			return null
		}
		return &object{kind: kindReal, real: f}
	}

	after := s.pos
	s.skip()
	g, gerr := strconv.Atoi(string(s.word()))
	if gerr == nil {
		s.skip()
		if !s.eof() && s.data[s.pos] == 'R' &&
			(s.pos+1 >= len(s.data) || isSpace(s.data[s.pos+1]) || isDelim(s.data[s.pos+1])) {
			s.pos++
			return &object{kind: kindRef, ref: ref{num: int(n), gen: g}}
		}
	}
	s.pos = after
	return &object{kind: kindInt, num: n}
}
