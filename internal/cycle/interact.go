package cycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// RecoveryChoice is the user's answer to the RecoveryPrompt transition.
type RecoveryChoice int

const (
	RecoveryResume RecoveryChoice = iota
	RecoveryMarkComplete
	RecoveryQuit
)

// CommitChoice is the user's answer to the Complete transition's commit prompt.
type CommitChoice int

const (
	CommitContinue CommitChoice = iota
	CommitQuit
)

// UserPrompts abstracts every interactive decision point in the state
// machine so the cycle package is testable against a scripted fake instead
// of real stdin/stdout.
type UserPrompts interface {
	ConfirmBranch(branch string) bool
	ConfirmDirtyTree() bool
	RecoveryChoice(todoContent string, mtime time.Time) RecoveryChoice
	EditRequirements(path string)
	ConfirmRefinementAccept(current string) bool
	ConfirmFinalizeIncomplete() bool
	ConfirmCommit(stagedFiles []string, summary, description string) CommitChoice
}

// ConsolePrompts is the production UserPrompts implementation. It reads
// through a bufio.Reader rather than fmt.Scanln so full lines (including
// spaces) and bare Enter presses come through correctly.
type ConsolePrompts struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompts builds a ConsolePrompts reading from stdin and writing to stdout.
func NewConsolePrompts() *ConsolePrompts {
	return &ConsolePrompts{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (c *ConsolePrompts) readLine() string {
	line, _ := c.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (c *ConsolePrompts) ConfirmBranch(branch string) bool {
	fmt.Fprintf(c.out, "On branch %q. Continue? [Y/n] ", branch)
	answer := strings.ToLower(c.readLine())
	return answer == "" || answer == "y" || answer == "yes"
}

func (c *ConsolePrompts) ConfirmDirtyTree() bool {
	fmt.Fprint(c.out, "Working tree has uncommitted changes. Continue anyway? [y/N] ")
	answer := strings.ToLower(c.readLine())
	return answer == "y" || answer == "yes"
}

func (c *ConsolePrompts) RecoveryChoice(todoContent string, mtime time.Time) RecoveryChoice {
	fmt.Fprintf(c.out, "Found an in-progress cycle (last modified %s).\n", mtime.Format("2006-01-02 15:04:05"))
	if todoContent != "" {
		fmt.Fprintln(c.out, todoContent)
	}
	fmt.Fprint(c.out, "[Y] resume / [N] mark complete / [Q] quit: ")
	switch strings.ToLower(c.readLine()) {
	case "y", "yes", "":
		return RecoveryResume
	case "n", "no":
		return RecoveryMarkComplete
	default:
		return RecoveryQuit
	}
}

func (c *ConsolePrompts) EditRequirements(path string) {
	fmt.Fprintf(c.out, "Edit %s, then press Enter to continue... ", path)
	c.readLine()
}

func (c *ConsolePrompts) ConfirmRefinementAccept(current string) bool {
	fmt.Fprintln(c.out, current)
	fmt.Fprint(c.out, "Accept this refinement? [Y/n] ")
	answer := strings.ToLower(c.readLine())
	return answer == "" || answer == "y" || answer == "yes"
}

func (c *ConsolePrompts) ConfirmFinalizeIncomplete() bool {
	fmt.Fprint(c.out, "todo.g3.md is not fully checked off. Finalize anyway? [y/N] ")
	answer := strings.ToLower(c.readLine())
	return answer == "y" || answer == "yes"
}

func (c *ConsolePrompts) ConfirmCommit(stagedFiles []string, summary, description string) CommitChoice {
	fmt.Fprintln(c.out, "Staged files:")
	for _, f := range stagedFiles {
		fmt.Fprintf(c.out, "  %s\n", f)
	}
	fmt.Fprintf(c.out, "\n%s\n\n%s\n\n", summary, description)
	fmt.Fprint(c.out, "[continue] commit, [quit] abort: ")
	answer := strings.ToLower(c.readLine())
	if answer == "quit" || answer == "q" {
		return CommitQuit
	}
	return CommitContinue
}
