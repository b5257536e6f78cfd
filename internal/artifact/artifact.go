// Package artifact implements the planner's on-disk artifact store: the
// requirements drafts, the todo checklist, and their stamped archives, all
// rooted at a single plan directory. Crash-resumability is a direct function
// of these file names and nothing else — there is deliberately no sidecar
// state file.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	PlanDirName             = "g3-plan"
	NewRequirementsFile     = "new_requirements.md"
	CurrentRequirementsFile = "current_requirements.md"
	TodoFile                = "todo.g3.md"
	HistoryFile             = "planner_history.txt"

	MarkerCurrentRequirements = "{{CURRENT REQUIREMENTS}}"
	MarkerOriginalUserReqs    = "{{ORIGINAL USER REQUIREMENTS -- THIS SECTION WILL BE IGNORED BY THE IMPLEMENTATION}}"

	// humanStampLayout is used for planner_history.txt timestamps.
	humanStampLayout = "2006-01-02 15:04:05"
	// fileStampLayout is used for archive filenames; it must never be
	// confused with humanStampLayout even though both encode the same instant.
	fileStampLayout = "2006-01-02_15-04-05"
)

// ArtifactIoError wraps a filesystem failure on a named planner artifact.
// It is fatal to the current phase and never retried; the failing artifact
// is left as-is to aid recovery.
type ArtifactIoError struct {
	Op    string
	Name  string
	Cause error
}

func (e *ArtifactIoError) Error() string {
	return fmt.Sprintf("%s artifact %q: %v", e.Op, e.Name, e.Cause)
}

func (e *ArtifactIoError) Unwrap() error { return e.Cause }

// Store roots every operation at a single plan directory derived from a codepath.
type Store struct {
	PlanDir string
}

// New derives the plan directory (`<codepath>/g3-plan`) from a codepath.
func New(codepath string) *Store {
	return &Store{PlanDir: filepath.Join(codepath, PlanDirName)}
}

// EnsurePlanDir creates the plan directory and an empty history file if absent.
func (s *Store) EnsurePlanDir() error {
	if err := os.MkdirAll(s.PlanDir, 0o755); err != nil {
		return &ArtifactIoError{Op: "create", Name: PlanDirName, Cause: err}
	}
	historyPath := s.path(HistoryFile)
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return &ArtifactIoError{Op: "create", Name: HistoryFile, Cause: err}
		}
		f.Close()
	}
	return nil
}

// path joins a bare filename onto the plan directory, rejecting traversal.
func (s *Store) path(name string) string {
	clean := filepath.Clean(name)
	if clean != name || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		// Callers only ever pass compile-time constants or stamped names built
		// by this package, so a traversal attempt indicates a programming error.
		panic(fmt.Sprintf("artifact: rejected path component %q", name))
	}
	return filepath.Join(s.PlanDir, clean)
}

// HistoryPath returns the absolute path to planner_history.txt.
func (s *Store) HistoryPath() string {
	return s.path(HistoryFile)
}

// Exists reports whether a named artifact exists.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Read returns the contents of a named artifact.
func (s *Store) Read(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", &ArtifactIoError{Op: "read", Name: name, Cause: err}
	}
	return string(data), nil
}

// Write creates or overwrites a named artifact.
func (s *Store) Write(name, content string) error {
	if err := os.MkdirAll(s.PlanDir, 0o755); err != nil {
		return &ArtifactIoError{Op: "create", Name: PlanDirName, Cause: err}
	}
	if err := os.WriteFile(s.path(name), []byte(content), 0o644); err != nil {
		return &ArtifactIoError{Op: "write", Name: name, Cause: err}
	}
	return nil
}

// Rename moves one artifact to another name within the plan directory.
// It is idempotent when the source is already absent and the destination
// already exists, which is what happens on a recovery resume.
func (s *Store) Rename(from, to string) error {
	fromPath, toPath := s.path(from), s.path(to)
	if _, err := os.Stat(fromPath); os.IsNotExist(err) {
		if _, err := os.Stat(toPath); err == nil {
			return nil
		}
		return &ArtifactIoError{Op: "rename", Name: from, Cause: fmt.Errorf("source absent and destination %q missing", to)}
	}
	if err := os.Rename(fromPath, toPath); err != nil {
		return &ArtifactIoError{Op: "rename", Name: from, Cause: err}
	}
	return nil
}

// Delete removes a named artifact; a missing file is not an error.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return &ArtifactIoError{Op: "delete", Name: name, Cause: err}
	}
	return nil
}

// Mtime returns the modification time of a named artifact.
func (s *Store) Mtime(name string) (time.Time, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		return time.Time{}, &ArtifactIoError{Op: "stat", Name: name, Cause: err}
	}
	return info.ModTime(), nil
}

// CycleState reports whether a fresh or in-progress cycle is detected from
// artifact presence alone. The state is never persisted explicitly.
type CycleState struct {
	Fresh     bool
	NewestMod time.Time
}

// DetectCycleState inspects current_requirements.md and todo.g3.md presence.
func (s *Store) DetectCycleState() (CycleState, error) {
	hasCurrent := s.Exists(CurrentRequirementsFile)
	hasTodo := s.Exists(TodoFile)
	if !hasCurrent && !hasTodo {
		return CycleState{Fresh: true}, nil
	}
	var newest time.Time
	for _, name := range []string{CurrentRequirementsFile, TodoFile} {
		if !s.Exists(name) {
			continue
		}
		mt, err := s.Mtime(name)
		if err != nil {
			return CycleState{}, err
		}
		if mt.After(newest) {
			newest = mt
		}
	}
	return CycleState{Fresh: false, NewestMod: newest}, nil
}

// EnsureMarkers prepends the original-user-requirements marker to
// new_requirements.md if it is not already present.
func (s *Store) EnsureMarkers() error {
	content, err := s.Read(NewRequirementsFile)
	if err != nil {
		return err
	}
	if strings.Contains(content, MarkerOriginalUserReqs) {
		return nil
	}
	updated := MarkerOriginalUserReqs + "\n\n" + content
	return s.Write(NewRequirementsFile, updated)
}

// HasCurrentRequirementsMarker reports whether refined content carries the
// required heading.
func HasCurrentRequirementsMarker(content string) bool {
	return strings.Contains(content, MarkerCurrentRequirements)
}

// HasBothMarkers reports whether a draft still carries both required markers.
func HasBothMarkers(content string) bool {
	return strings.Contains(content, MarkerCurrentRequirements) && strings.Contains(content, MarkerOriginalUserReqs)
}

// Stamp formats an instant as the filesystem-safe archive stamp.
func Stamp(t time.Time) string {
	return t.Format(fileStampLayout)
}

// HistoryTimestamp formats an instant as the human-readable history timestamp.
func HistoryTimestamp(t time.Time) string {
	return t.Format(humanStampLayout)
}

// ArchiveRequirementsName builds the stamped archive filename for requirements.
func ArchiveRequirementsName(stamp string) string {
	return fmt.Sprintf("completed_requirements_%s.md", stamp)
}

// ArchiveTodoName builds the stamped archive filename for the todo checklist.
func ArchiveTodoName(stamp string) string {
	return fmt.Sprintf("completed_todo_%s.md", stamp)
}
