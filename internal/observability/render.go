package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// termMu synchronizes terminal output so timeline lines and log
// writes never interleave mid-line.
var termMu sync.Mutex

var (
	actionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	timeStyle   = lipgloss.NewStyle().Faint(true)
	textStyle   = lipgloss.NewStyle().PaddingLeft(2)
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

type termWriter struct{ w io.Writer }

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.w.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with the timeline printer.
func NewTermWriter() io.Writer {
	return termWriter{w: os.Stderr}
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TimelinePrinter renders steps as they are recorded.
type TimelinePrinter struct {
	out   io.Writer
	plain bool
	width int
}

// NewTimelinePrinter styles output only when writing to a terminal.
func NewTimelinePrinter(out io.Writer) *TimelinePrinter {
	plain := true
	width := 80
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		plain = false
		width = termWidth()
	}
	return &TimelinePrinter{out: out, plain: plain, width: width}
}

func (p *TimelinePrinter) RecordStep(step AgentStep) error {
	termMu.Lock()
	defer termMu.Unlock()
	_, err := io.WriteString(p.out, p.Format(step))
	return err
}

// Format renders one step; plain mode emits no escape sequences.
func (p *TimelinePrinter) Format(step AgentStep) string {
	ts := step.Timestamp.Format("15:04:05")
	marker := "✓"
	if step.FinishReason == FinishError {
		marker = "✗"
	}
	text := strings.TrimSpace(step.Text)

	if p.plain {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s %s\n", ts, marker, step.HumanAction)
		for _, line := range strings.Split(text, "\n") {
			if line != "" {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
		return b.String()
	}

	head := actionStyle.Render(marker + " " + step.HumanAction)
	if step.FinishReason == FinishError {
		head = errorStyle.Render(marker + " " + step.HumanAction)
	}
	body := ""
	if text != "" {
		body = textStyle.Width(p.width-2).Render(text) + "\n"
	}
	return fmt.Sprintf("%s %s\n%s", timeStyle.Render(ts), head, body)
}

// FormatTimeline renders a whole run.
func (p *TimelinePrinter) FormatTimeline(steps []AgentStep) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(p.Format(s))
	}
	return b.String()
}
