package cycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/retry"
)

// Run drives the full planning cycle: Startup, an optional recovery prompt,
// then Refine, Implement, and Complete, looping back to Refine after every
// completed cycle until the user quits or an unrecoverable error occurs.
func Run(ctx context.Context, opts Options, prompts UserPrompts) error {
	s := NewSession(opts, prompts)

	state, err := s.Startup()
	if err != nil {
		if errors.Is(err, ErrUserQuit) {
			return nil
		}
		s.reportError(err)
		return err
	}

	resume, err := s.RecoveryPrompt(state)
	if err != nil {
		if errors.Is(err, ErrUserQuit) {
			return nil
		}
		s.reportError(err)
		return err
	}

	var currentRequirements string
	skipToComplete := false
	if resume {
		currentRequirements, err = s.Store.Read(artifact.CurrentRequirementsFile)
		if err != nil {
			s.reportError(err)
			return err
		}
		if _, err := s.Implement(ctx, currentRequirements); err != nil {
			s.reportError(err)
			return err
		}
	} else if !state.Fresh {
		// The user skipped recovery: whatever artifacts are on disk go
		// straight to Complete for archival, without re-implementing.
		// current_requirements.md may be absent if the crash left only a
		// todo checklist behind; Complete handles either shape.
		currentRequirements, _ = s.Store.Read(artifact.CurrentRequirementsFile)
		skipToComplete = true
	}

	for {
		if !skipToComplete && currentRequirements == "" {
			currentRequirements, err = s.Refine(ctx)
			if err != nil {
				s.reportError(err)
				return err
			}
			if _, err := s.Implement(ctx, currentRequirements); err != nil {
				s.reportError(err)
				return err
			}
		}
		skipToComplete = false

		if err := s.Complete(ctx, currentRequirements); err != nil {
			if errors.Is(err, ErrUserQuit) {
				return nil
			}
			s.reportError(err)
			return err
		}

		// Next cycle starts fresh.
		currentRequirements = ""
	}
}

// reportError prints an error through the display's classification
// convention before it propagates to the CLI exit path.
func (s *Session) reportError(err error) {
	if s.Display == nil {
		return
	}
	var recoverable *retry.RecoverableError
	var nonRecoverable *retry.NonRecoverableError
	var artifactErr *artifact.ArtifactIoError
	switch {
	case errors.As(err, &recoverable):
		s.Display.RecoverableError(recoverable.Variant)
	case errors.As(err, &nonRecoverable):
		s.Display.NonRecoverableError(nonRecoverable.Message)
	case errors.As(err, &artifactErr):
		s.Display.Error(fmt.Sprintf("%v; artifacts left in place for recovery", artifactErr))
	default:
		s.Display.Error(err.Error())
	}
}
