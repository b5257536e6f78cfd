// Package display provides unified, themed terminal output for the planner:
// boxed orchestration messages, sub-agent tool-call headers satisfying the
// gateway's UI contract, retry and feedback notifications, and classified
// error display. Tool-call emission is an atomic single-line write; nothing
// here redraws with carriage returns or overwrites a tool line with a later
// status line.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/g3labs/planner/internal/feedback"
	"github.com/g3labs/planner/internal/llmgateway"
	"github.com/g3labs/planner/internal/retry"
)

// Display handles all CLI output with visual hierarchy.
type Display struct {
	theme     *Theme
	termWidth int
	noColor   bool
}

// New creates a Display using the default (colored) theme.
func New() *Display {
	return NewWithOptions(false)
}

// NewWithOptions creates a Display honoring --no-color.
func NewWithOptions(noColor bool) *Display {
	d := &Display{
		termWidth: getTerminalWidth(),
		noColor:   noColor,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

// Theme returns the current theme for external use.
func (d *Display) Theme() *Theme { return d.theme }

// PlannerBox prints a boxed message with a custom title.
func (d *Display) PlannerBox(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}
	width := d.termWidth - 2
	titleLen := len(title) + 4
	remainingWidth := width - titleLen
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Println(d.theme.PlannerBorder(topLine))

	for _, line := range lines {
		padded := d.padRight(line, width-2)
		fmt.Println(d.theme.PlannerBorder(BoxVertical) + " " + d.theme.PlannerText(padded) + " " + d.theme.PlannerBorder(BoxVertical))
	}

	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Println(d.theme.PlannerBorder(bottomLine))
}

// PlannerStatus prints a single-line status message (no box).
func (d *Display) PlannerStatus(symbol, message string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s %s %s\n", d.theme.PlannerBorder(timestamp), symbol, d.theme.PlannerText(message))
}

// Success prints a success message with a green checkmark.
func (d *Display) Success(message string) { d.PlannerStatus(d.theme.Success(SymbolSuccess), message) }

// Error prints an error message with a red X.
func (d *Display) Error(message string) { d.PlannerStatus(d.theme.Error(SymbolError), message) }

// Warning prints a warning message with a yellow triangle.
func (d *Display) Warning(message string) { d.PlannerStatus(d.theme.Warning(SymbolWarning), message) }

// Info prints a labeled info message.
func (d *Display) Info(label, message string) {
	d.PlannerStatus(d.theme.Info(label+":"), message)
}

// Resume prints a resume/recovery message with a cyan arrow.
func (d *Display) Resume(message string) { d.PlannerStatus(d.theme.Info(SymbolResume), message) }

// SectionBreak prints a horizontal separator.
func (d *Display) SectionBreak() {
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// ToolCall implements llmgateway.UIWriter: one header line per tool call,
// with no surrounding blank lines.
func (d *Display) ToolCall(index int, name string, argsJSON string) {
	fmt.Println(d.theme.AgentToolCount(llmgateway.FormatToolCallHeader(index, name, argsJSON)))
}

// Text implements llmgateway.UIWriter: assistant text is printed verbatim,
// one Println per message, never overwritten via carriage return.
func (d *Display) Text(text string) {
	if text == "" {
		return
	}
	fmt.Println(d.theme.AgentText(text))
}

// Done implements llmgateway.UIWriter. The full result text has already
// streamed; this prints a one-line completion marker.
func (d *Display) Done(result string) {
	if result == "" {
		return
	}
	fmt.Printf("%s %s\n", d.theme.AgentToolCount("[done]"), d.theme.AgentText(Truncate(result, d.termWidth-10)))
}

// RetryWarning implements retry.Notifier: "⚠️ <role> error (attempt n/N): <variant> — <message>".
func (d *Display) RetryWarning(role retry.Role, attempt, maxAttempts int, variant retry.Variant, message string) {
	fmt.Printf("%s %s error (attempt %d/%d): %s — %s\n",
		d.theme.Warning("⚠️"), role, attempt, maxAttempts, variant, message)
}

// RetryScheduled implements retry.Notifier: "🔄 Retrying <role> in <d>s…".
func (d *Display) RetryScheduled(role retry.Role, delay time.Duration) {
	fmt.Printf("🔄 Retrying %s in %.1fs…\n", role, delay.Seconds())
}

// RetryExhausted implements retry.Notifier: "🔄 Max retries (N) reached for <role>".
func (d *Display) RetryExhausted(role retry.Role, maxRetries int) {
	fmt.Printf("🔄 Max retries (%d) reached for %s\n", maxRetries, role)
}

// FeedbackExtracted prints the extraction source line followed by up to 25
// lines of feedback text.
func (d *Display) FeedbackExtracted(source feedback.Source, text string) {
	fmt.Println(feedback.FormatExtractedFrom(source, text))
	for _, line := range feedback.SummaryLines(text, 25) {
		fmt.Println(line)
	}
}

// RecoverableError prints the display convention for a retried-and-still-
// failing recoverable error.
func (d *Display) RecoverableError(variant retry.Variant) {
	fmt.Printf("%s Recoverable error: %s\n", d.theme.Warning("⚠️"), variant)
}

// NonRecoverableError prints the display convention for a non-recoverable error.
func (d *Display) NonRecoverableError(message string) {
	fmt.Printf("%s Non-recoverable error: %s\n", d.theme.Error("❌"), message)
}

// padRight pads a string to the specified width, truncating if longer.
func (d *Display) padRight(s string, width int) string {
	if width < 0 {
		width = 0
	}
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate truncates text to max length with an ellipsis.
func Truncate(s string, max int) string {
	s = CleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// CleanText removes newlines and collapses repeated spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
