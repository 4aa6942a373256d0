package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
)

// UseColor reports whether f is a terminal and NO_COLOR is unset.
func UseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// WriteSummary prints the end-of-run summary: one line per attempt and a
// table of the entities still failing.
func WriteSummary(w io.Writer, rep retry.Report, color bool) error {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	var (
		title = r.NewStyle().Bold(true)
		pass  = r.NewStyle().Foreground(lipgloss.Color("2"))
		warn  = r.NewStyle().Foreground(lipgloss.Color("3"))
		muted = r.NewStyle().Foreground(lipgloss.Color("8"))
	)

	status := pass.Render(string(rep.Status))
	if rep.Status != retry.StatusSuccess {
		status = warn.Render(string(rep.Status))
	}
	fmt.Fprintf(w, "%s %s  %s\n", title.Render("run"), rep.RunID, status)
	for _, a := range rep.Attempts {
		fmt.Fprintf(w, "  attempt %d: %d exported, %d failed %s\n",
			a.Attempt, len(a.Succeeded), len(a.Failed), muted.Render("("+a.Duration.Round(time.Millisecond).String()+")"))
	}
	fmt.Fprintf(w, "%d of %d entities exported", len(rep.Exported), rep.Total)
	if rep.Interrupted {
		fmt.Fprint(w, warn.Render(" (interrupted)"))
	}
	fmt.Fprintln(w)

	if len(rep.Remaining) == 0 || len(rep.Attempts) == 0 {
		return nil
	}
	last := rep.Attempts[len(rep.Attempts)-1]
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(muted).
		Headers("#", "entity", "kind", "diagnostic")
	n := 0
	for _, o := range last.Outcomes {
		if o.OK() {
			continue
		}
		n++
		t.Row(strconv.Itoa(n), o.Entity.Name, string(o.Kind), o.Diagnostic)
	}
	if n == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
