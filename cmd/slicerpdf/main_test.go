package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/porticus-lab/go-slicer-pdf/internal/config"
)

func TestExecute_MissingURL(t *testing.T) {
	t.Setenv("SLICERPDF_URL", "")
	dir := t.TempDir()
	code := execute([]string{"run", "--input", filepath.Join(dir, "x.csv"), "--output", dir, "--env-file", ""})
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
}

func TestExecute_NothingToDo(t *testing.T) {
	out := t.TempDir()
	code := execute([]string{"run",
		"--url", "http://127.0.0.1:1/dashboard",
		"--failures-only",
		"--output", out,
		"--prefix", "hosp",
		"--env-file", "",
	})
	if code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}
	matches, _ := filepath.Glob(filepath.Join(out, "hosp_*", "run.yaml"))
	if len(matches) != 1 {
		t.Errorf("run.yaml files = %v, want one", matches)
	}
}

func TestExecute_VerifyEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if code := execute([]string{"verify", dir, "--env-file", ""}); code != exitOK {
		t.Fatalf("exit = %d, want %d", code, exitOK)
	}
	data, err := os.ReadFile(filepath.Join(dir, "exported.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "file,pages,bytes,status") {
		t.Errorf("exported.csv = %q", data)
	}
}

func TestExecute_VerifyInvalidPDF(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := execute([]string{"verify", dir, "--env-file", ""}); code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
}

// openFiles lists the files this process holds open, or skips where that
// cannot be observed.
func openFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("open descriptors not observable:", err)
	}
	var out []string
	for _, e := range entries {
		if target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name())); err == nil {
			out = append(out, target)
		}
	}
	return out
}

func TestExecute_LogFileClosedAfterFailure(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(t.TempDir(), "slicerpdf.log")
	code := execute([]string{"verify", dir, "--env-file", "", "--log-file", logFile})
	if code != exitError {
		t.Fatalf("exit = %d, want %d", code, exitError)
	}
	data, err := os.ReadFile(logFile)
	if err != nil || len(data) == 0 {
		t.Fatalf("log file = %q, %v; want entries", data, err)
	}
	for _, f := range openFiles(t) {
		if f == logFile {
			t.Errorf("%s still open after execute returned", logFile)
		}
	}
}

func TestCLI_CloseRunsOnce(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	_, c := newRootCmd()
	logFile := filepath.Join(t.TempDir(), "x.log")
	c.setupLogger(config.Log{Level: "info", Format: "text", File: logFile})
	c.log.Info("hello")
	c.close()
	c.close()
	if len(c.closers) != 0 {
		t.Errorf("closers = %d after close", len(c.closers))
	}
}

func TestExecute_HistoryNeedsJournal(t *testing.T) {
	t.Setenv("SLICERPDF_JOURNAL", "")
	if code := execute([]string{"history", "--env-file", ""}); code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
}

func TestExecute_HistoryEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	if code := execute([]string{"history", "--journal", path, "--env-file", ""}); code != exitOK {
		t.Errorf("exit = %d, want %d", code, exitOK)
	}
}
