// Package naming derives output file and directory names for a run.
//
// Entity names come from user input and may contain path separators or
// characters reserved on common filesystems. Every name is mapped to a stem
// that is safe on all of them, and a [Layout] guarantees that no two
// entities in a run share an output path.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// StampLayout is the time format of run directory and file stamps.
const StampLayout = "20060102_150405"

const maxStemBytes = 120

var reserved = regexp.MustCompile(`[\\/*?:"<>|]`)

// Sanitize maps name to a filename stem. Reserved characters and control
// characters become "_". A stem that had to be altered carries a short hash
// of the raw name, so "A/B" and "A?B" stay distinct.
func Sanitize(name string) string {
	s := reserved.ReplaceAllString(name, "_")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, " .")
	if s == "" {
		s = "unnamed"
	}
	s = truncate(s, maxStemBytes)
	if s != name {
		s += "_" + shortHash(name)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimRight(s, " .")
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// Stamp formats t as a run stamp.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// CreateRunDir creates a fresh directory <root>/<prefix>_<stamp>. When that
// name is taken, a numeric suffix is appended. The directory is never
// shared with an earlier run.
func CreateRunDir(root, prefix, stamp string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating output root: %w", err)
	}
	base := filepath.Join(root, prefix+"_"+stamp)
	for i := 1; i <= 1000; i++ {
		dir := base
		if i > 1 {
			dir = fmt.Sprintf("%s_%d", base, i)
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("creating run directory: %w", err)
		}
	}
	return "", fmt.Errorf("creating run directory: too many runs named %s", base)
}

// Assign maps each raw name to a stem that is unique within names,
// comparing case-insensitively. Assignment is deterministic in the order of
// names; a repeated raw name gets the stem of its first occurrence.
func Assign(names []string) map[string]string {
	stems := make(map[string]string, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := stems[n]; ok {
			continue
		}
		base := Sanitize(n)
		stem := base
		for i := 2; taken[strings.ToLower(stem)]; i++ {
			stem = fmt.Sprintf("%s_%d", base, i)
		}
		taken[strings.ToLower(stem)] = true
		stems[n] = stem
	}
	return stems
}
