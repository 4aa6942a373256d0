package naming

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in        string
		wantStart string
		unchanged bool
	}{
		{"Hospital A", "Hospital A", true},
		{"St. Mary's", "St. Mary's", true},
		{"A/B", "A_B_", false},
		{`C:\temp`, "C__temp_", false},
		{"Who?", "Who__", false},
		{"tab\there", "tab_here_", false},
		{"...", "unnamed_", false},
		{"", "unnamed_", false},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if tt.unchanged && got != tt.in {
			t.Errorf("Sanitize(%q) = %q, want unchanged", tt.in, got)
		}
		if !strings.HasPrefix(got, tt.wantStart) {
			t.Errorf("Sanitize(%q) = %q, want prefix %q", tt.in, got, tt.wantStart)
		}
		if strings.ContainsAny(got, `\/*?:"<>|`) {
			t.Errorf("Sanitize(%q) = %q still has reserved characters", tt.in, got)
		}
	}
}

func TestSanitize_DistinctInputsStayDistinct(t *testing.T) {
	if Sanitize("A/B") == Sanitize("A?B") {
		t.Error("different raw names sanitized to the same stem")
	}
}

func TestSanitize_Truncates(t *testing.T) {
	long := strings.Repeat("é", 200)
	got := Sanitize(long)
	if len(got) > maxStemBytes+9 {
		t.Errorf("len = %d, want at most %d", len(got), maxStemBytes+9)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(got, got[strings.LastIndex(got, "_"):])) {
		t.Errorf("truncated stem %q is not a prefix of the input", got)
	}
}

func TestAssign(t *testing.T) {
	names := []string{"Hospital A", "hospital a", "Hospital  A", "Hospital A", "Hospital A_2"}
	stems := Assign(names)
	if len(stems) != 4 {
		t.Fatalf("got %d stems, want 4: %v", len(stems), stems)
	}
	seen := map[string]string{}
	for raw, stem := range stems {
		k := strings.ToLower(stem)
		if other, dup := seen[k]; dup {
			t.Errorf("%q and %q share stem %q", raw, other, stem)
		}
		seen[k] = raw
	}
	if stems["Hospital A"] != "Hospital A" {
		t.Errorf("first occurrence stem = %q, want unchanged", stems["Hospital A"])
	}
	if stems["hospital a"] != "hospital a_2" {
		t.Errorf("case collision stem = %q, want %q", stems["hospital a"], "hospital a_2")
	}
}

func TestAssign_Deterministic(t *testing.T) {
	names := []string{"X", "x", "X?", "X_"}
	a, b := Assign(names), Assign(names)
	for k, v := range a {
		if b[k] != v {
			t.Errorf("stem of %q differs between calls: %q vs %q", k, v, b[k])
		}
	}
}

func TestCreateRunDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	stamp := Stamp(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	if stamp != "20240305_140709" {
		t.Fatalf("Stamp = %q", stamp)
	}

	first, err := CreateRunDir(root, "SB_Report", stamp)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "SB_Report_20240305_140709" {
		t.Errorf("first dir = %q", first)
	}
	second, err := CreateRunDir(root, "SB_Report", stamp)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "SB_Report_20240305_140709_2" {
		t.Errorf("second dir = %q", second)
	}
	for _, d := range []string{first, second} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
}

func TestLayout(t *testing.T) {
	l := NewLayout("/out/run", "SB_Report", "20240305_140709", []string{"Hospital A", "A/B"})
	if got, want := l.PDFPath("Hospital A"), filepath.Join("/out/run", "SB_Report_20240305_140709_Hospital A.pdf"); got != want {
		t.Errorf("PDFPath = %q, want %q", got, want)
	}
	if got, want := l.ScreenshotPath("Hospital A"), filepath.Join("/out/run", "screenshots", "Hospital A_a1.png"); got != want {
		t.Errorf("ScreenshotPath = %q, want %q", got, want)
	}
	l2 := l.ForAttempt(3)
	if got, want := l2.ScreenshotPath("Hospital A"), filepath.Join("/out/run", "screenshots", "Hospital A_a3.png"); got != want {
		t.Errorf("ScreenshotPath = %q, want %q", got, want)
	}
	if l.ScreenshotPath("Hospital A") == l2.ScreenshotPath("Hospital A") {
		t.Error("ForAttempt modified the original layout")
	}
	if strings.Contains(filepath.Base(l.PDFPath("A/B")), "/") {
		t.Error("unsanitized separator in PDF path")
	}
	if l.Stem("Unknown?") != Sanitize("Unknown?") {
		t.Error("names outside the working set must fall back to Sanitize")
	}
}
