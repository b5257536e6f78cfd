package cycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/history"
)

// isTodoComplete reports whether a todo.g3.md checklist has no remaining
// unchecked items. A blank or all-checked checklist counts as complete.
func isTodoComplete(content string) bool {
	return !strings.Contains(content, "[ ]")
}

// Complete closes out a cycle. When the existing todo checklist is
// incomplete, it first offers the user the choice to return to the inner
// loop rather than finalize; once finalized it archives the requirements and
// todo files under a fresh stamp, stages changes, drafts a commit message,
// and, on user confirmation, commits through the git bridge's commit gate,
// the sole path that can reach a commit.
func (s *Session) Complete(ctx context.Context, currentRequirements string) error {
	for {
		if !s.Store.Exists(artifact.TodoFile) {
			break
		}
		todoContent, err := s.Store.Read(artifact.TodoFile)
		if err != nil {
			return fmt.Errorf("read todo checklist: %w", err)
		}
		if isTodoComplete(todoContent) {
			break
		}
		s.Display.Warning("todo checklist has unchecked items")
		if !s.Prompts.ConfirmFinalizeIncomplete() {
			if _, err := s.innerLoop(ctx, currentRequirements); err != nil {
				return err
			}
			continue
		}
		break
	}

	stamp := artifact.Stamp(time.Now())
	requirementsArchive := artifact.ArchiveRequirementsName(stamp)
	todoArchive := artifact.ArchiveTodoName(stamp)

	if s.Store.Exists(artifact.CurrentRequirementsFile) {
		if err := s.Store.Rename(artifact.CurrentRequirementsFile, requirementsArchive); err != nil {
			return fmt.Errorf("archive requirements: %w", err)
		}
	}
	if s.Store.Exists(artifact.TodoFile) {
		if err := s.Store.Rename(artifact.TodoFile, todoArchive); err != nil {
			return fmt.Errorf("archive todo checklist: %w", err)
		}
	}

	staged, err := s.Bridge.Stage()
	if err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}

	summary, description, err := s.Gateway.GenerateCommitMessage(ctx, s.Codepath, currentRequirements, []string{requirementsArchive, todoArchive})
	if err != nil {
		return err
	}

	if s.Prompts.ConfirmCommit(staged, summary, description) == CommitQuit {
		return ErrUserQuit
	}

	// The gate journals GIT COMMIT (<summary>) before committing, and the
	// journal line survives a failed commit.
	sha, err := s.Gate.Commit(summary, description)
	if err != nil {
		s.Display.Error(fmt.Sprintf("commit failed, commit manually: %v", err))
		return err
	}
	if !s.Bridge.Disabled() {
		s.Display.Success("committed " + sha)
	}

	return s.Journal.Write(history.Event{
		Tag:     history.TagCompletedRequirements,
		Payload: requirementsArchive + ", " + todoArchive,
	})
}
