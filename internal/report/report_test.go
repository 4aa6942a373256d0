package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/batch"
	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
)

func onePagePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, o := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// sampleReport: A succeeds at once, B on the second attempt, Z never.
func sampleReport(dir string) retry.Report {
	ent := func(n string) slicerpdf.Entity { return slicerpdf.Entity{Name: n} }
	pdfPath := func(n string) string { return filepath.Join(dir, "rep_x_"+n+".pdf") }
	noMatch := &slicerpdf.StepError{Kind: slicerpdf.KindMatch, Step: "match option", Err: slicerpdf.ErrNoExactMatch}

	a1 := batch.AttemptResult{
		Attempt:  1,
		Outcomes: []slicerpdf.Outcome{
			slicerpdf.Succeeded(ent("A"), pdfPath("A")),
			slicerpdf.Failed(ent("B"), slicerpdf.ErrWaitTimeout),
			slicerpdf.Failed(ent("Z"), noMatch),
		},
		Succeeded: []slicerpdf.Entity{ent("A")},
		Failed:    []slicerpdf.Entity{ent("B"), ent("Z")},
		Duration:  3 * time.Second,
	}
	a2 := batch.AttemptResult{
		Attempt:  2,
		Outcomes: []slicerpdf.Outcome{
			slicerpdf.Succeeded(ent("B"), pdfPath("B")),
			slicerpdf.Failed(ent("Z"), noMatch),
		},
		Succeeded: []slicerpdf.Entity{ent("B")},
		Failed:    []slicerpdf.Entity{ent("Z")},
		Duration:  time.Second,
	}
	return retry.Report{
		RunID:     "run-42",
		Status:    retry.StatusPartial,
		Attempts:  []batch.AttemptResult{a1, a2},
		Total:     3,
		Exported:  []slicerpdf.Outcome{a1.Outcomes[0], a2.Outcomes[0]},
		Remaining: []slicerpdf.Entity{ent("Z")},
		Duration:  4 * time.Second,
	}
}

func TestNewManifest(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	m := NewManifest(sampleReport(dir), "https://dash", dir, started)

	if m.Status != retry.StatusPartial || len(m.Attempts) != 2 || len(m.Entities) != 3 {
		t.Fatalf("manifest = %+v", m)
	}
	if !m.Finished.Equal(started.Add(4 * time.Second)) {
		t.Errorf("Finished = %v", m.Finished)
	}
	b := m.Entities[1]
	if b.Name != "B" || b.Status != slicerpdf.StatusSuccess || b.Attempts != 2 || b.Artifact != "rep_x_B.pdf" || b.Kind != "" {
		t.Errorf("B = %+v", b)
	}
	z := m.Entities[2]
	if z.Status != slicerpdf.StatusFailure || z.Kind != slicerpdf.KindMatch || z.Attempts != 2 {
		t.Errorf("Z = %+v", z)
	}
	if len(m.Exported()) != 2 {
		t.Errorf("Exported = %+v", m.Exported())
	}
	if len(m.Remaining) != 1 || m.Remaining[0] != "Z" {
		t.Errorf("Remaining = %v", m.Remaining)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest(sampleReport(dir), "https://dash", dir, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if got.RunID != m.RunID || len(got.Entities) != 3 || got.Attempts[0].Duration != 3*time.Second {
		t.Errorf("read back %+v", got)
	}
	if !got.Started.Equal(m.Started) {
		t.Errorf("Started = %v, want %v", got.Started, m.Started)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleReport("/out"), false); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run-42", "partial", "attempt 1: 1 exported, 2 failed", "2 of 3 entities exported", "Z", "match"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("summary contains escape codes with color off")
	}
}

func TestWriteSummary_Success(t *testing.T) {
	rep := retry.Report{RunID: "ok", Status: retry.StatusSuccess, Total: 0}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, rep, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 of 0 entities exported") {
		t.Errorf("summary = %q", buf.String())
	}
}

func TestScanAndCrossCheck(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("rep_x_A.pdf", onePagePDF())
	write("rep_x_stray.pdf", onePagePDF())
	write("rep_x_broken.pdf", []byte("<html>not a pdf</html>"))
	write("notes.txt", []byte("ignored"))
	if err := os.Mkdir(filepath.Join(dir, "screenshots"), 0o755); err != nil {
		t.Fatal(err)
	}

	arts, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(arts) != 3 {
		t.Fatalf("Scan found %d PDFs, want 3", len(arts))
	}
	if arts[0].File != "rep_x_A.pdf" || arts[0].Pages != 1 || arts[0].Err != nil {
		t.Errorf("arts[0] = %+v", arts[0])
	}
	if arts[1].File != "rep_x_broken.pdf" || arts[1].Err == nil || arts[1].Bytes == 0 {
		t.Errorf("arts[1] = %+v", arts[1])
	}

	m := NewManifest(sampleReport(dir), "", dir, time.Now())
	problems := CrossCheck(m, arts)
	joined := strings.Join(problems, "\n")
	for _, want := range []string{"rep_x_broken.pdf", "B: exported as rep_x_B.pdf but missing", "rep_x_stray.pdf: not in run.yaml"} {
		if !strings.Contains(joined, want) {
			t.Errorf("problems missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "rep_x_A.pdf: not in") {
		t.Errorf("A is listed in the manifest:\n%s", joined)
	}

	if err := WriteInventory(dir, arts); err != nil {
		t.Fatalf("WriteInventory: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, InventoryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "file" || rows[1][1] != "1" || rows[1][3] != "ok" {
		t.Errorf("inventory = %v", rows)
	}
	if !strings.HasPrefix(rows[2][3], "invalid") {
		t.Errorf("broken row = %v", rows[2])
	}
}
