package cycle

import (
	"fmt"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/history"
)

// RecoveryPrompt handles an in-progress cycle found at startup. It returns
// true when the caller should proceed to Implement against the existing
// current_requirements.md, false when it should proceed to Complete having
// marked the cycle skipped. ErrUserQuit is returned on [Q]. The resume path
// never renames or deletes anything; Complete owns those transitions.
func (s *Session) RecoveryPrompt(state artifact.CycleState) (resume bool, err error) {
	if state.Fresh {
		return false, nil
	}

	var todoContent string
	if s.Store.Exists(artifact.TodoFile) {
		todoContent, err = s.Store.Read(artifact.TodoFile)
		if err != nil {
			return false, fmt.Errorf("read todo checklist: %w", err)
		}
	}

	switch s.Prompts.RecoveryChoice(todoContent, state.NewestMod) {
	case RecoveryResume:
		if err := s.Journal.Write(history.Event{Tag: history.TagAttemptingRecovery}); err != nil {
			return false, err
		}
		s.Display.Resume("attempting recovery of in-progress cycle")
		return true, nil
	case RecoveryMarkComplete:
		if err := s.Journal.Write(history.Event{Tag: history.TagUserSkippedRecovery}); err != nil {
			return false, err
		}
		return false, nil
	default:
		return false, ErrUserQuit
	}
}
