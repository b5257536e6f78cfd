// Package history implements the planner's append-only audit log,
// planner_history.txt, and the write-before-act discipline that makes the
// rest of the system crash-recoverable. Every append opens the file, writes
// one terminated line, and closes it; no handle is ever retained across
// calls, so the durability of each append is bounded only by the OS's
// close-flush behavior.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Tag is one of the fixed history event vocabulary entries.
type Tag string

const (
	TagRefiningRequirements  Tag = "REFINING REQUIREMENTS"
	TagGitHead               Tag = "GIT HEAD"
	TagStartImplementing     Tag = "START IMPLEMENTING"
	TagAttemptingRecovery    Tag = "ATTEMPTING RECOVERY"
	TagUserSkippedRecovery   Tag = "USER SKIPPED RECOVERY"
	TagCompletedRequirements Tag = "COMPLETED REQUIREMENTS"
	TagGitCommit             Tag = "GIT COMMIT"
)

// Event is one line to be appended to the journal.
type Event struct {
	Tag       Tag
	Payload   string   // rendered as "(<Payload>)" when non-empty
	Summary   []string // indented "<<...>>" block; only meaningful for TagStartImplementing
	Timestamp time.Time
}

// Journal appends events to a single planner_history.txt file.
type Journal struct {
	Path string
}

// New returns a Journal rooted at the given path. The file need not exist
// yet: Write creates it (and its parent directory) on the first append.
func New(path string) *Journal {
	return &Journal{Path: path}
}

// Write appends one event. It opens the file in append mode, writes exactly
// one terminated entry, and closes the handle — this call is the "happens
// before" barrier every external action (git commit, archive) must follow.
// Callers MUST invoke this lexically before attempting the action it
// journals; no wrapper in this codebase is permitted to reorder that.
func (j *Journal) Write(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
		return fmt.Errorf("ensure history dir: %w", err)
	}

	f, err := os.OpenFile(j.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	line := render(e)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func render(e Event) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString(" - ")
	b.WriteString(string(e.Tag))
	if e.Payload != "" {
		b.WriteString(" (")
		b.WriteString(e.Payload)
		b.WriteString(")")
	}
	b.WriteString("\n")
	if len(e.Summary) > 0 {
		b.WriteString("<<\n")
		for _, line := range e.Summary {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString(">>\n")
	}
	return b.String()
}

// ReadAll loads the full journal content, used by tests and recovery display.
func (j *Journal) ReadAll() (string, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return "", fmt.Errorf("read history file: %w", err)
	}
	return string(data), nil
}

// LastTag returns the tag of the final entry, or "" if the journal is empty.
func (j *Journal) LastTag() (Tag, error) {
	content, err := j.ReadAll()
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if line == "" || strings.HasPrefix(line, "<<") || strings.HasPrefix(line, ">>") || strings.HasPrefix(line, "  ") {
			continue
		}
		parts := strings.SplitN(line, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		tagAndPayload := parts[1]
		if idx := strings.Index(tagAndPayload, " ("); idx >= 0 {
			return Tag(tagAndPayload[:idx]), nil
		}
		return Tag(tagAndPayload), nil
	}
	return "", nil
}
