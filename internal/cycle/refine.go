package cycle

import (
	"context"
	"fmt"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/history"
)

// MarkerMissingError is returned when refinement produces a draft missing
// the {{CURRENT REQUIREMENTS}} heading.
type MarkerMissingError struct{}

func (e *MarkerMissingError) Error() string {
	return "refinement produced no {{CURRENT REQUIREMENTS}} heading; restart this cycle"
}

// Refine starts a fresh cycle: it deletes the stale todo checklist, then
// loops the user through editing new_requirements.md and invoking the
// gateway's refinement until the user accepts a draft carrying the
// {{CURRENT REQUIREMENTS}} heading. It returns the accepted draft text.
func (s *Session) Refine(ctx context.Context) (string, error) {
	if err := s.Store.Delete(artifact.TodoFile); err != nil {
		return "", fmt.Errorf("delete stale todo checklist: %w", err)
	}

	if !s.Store.Exists(artifact.NewRequirementsFile) {
		if err := s.Store.Write(artifact.NewRequirementsFile, ""); err != nil {
			return "", fmt.Errorf("seed new requirements draft: %w", err)
		}
	}

	path := s.Store.PlanDir + "/" + artifact.NewRequirementsFile

	for {
		s.Prompts.EditRequirements(path)

		if !s.Store.Exists(artifact.NewRequirementsFile) {
			return "", fmt.Errorf("new requirements draft %q no longer exists", path)
		}
		if err := s.Store.EnsureMarkers(); err != nil {
			return "", fmt.Errorf("ensure requirement markers: %w", err)
		}

		draft, err := s.Store.Read(artifact.NewRequirementsFile)
		if err != nil {
			return "", fmt.Errorf("read requirements draft: %w", err)
		}

		if err := s.Journal.Write(history.Event{Tag: history.TagRefiningRequirements, Payload: artifact.NewRequirementsFile}); err != nil {
			return "", err
		}

		refined, err := s.Gateway.RefineRequirements(ctx, s.Codepath, draft)
		if err != nil {
			return "", err
		}
		if !artifact.HasCurrentRequirementsMarker(refined) {
			return "", &MarkerMissingError{}
		}
		if err := s.Store.Write(artifact.NewRequirementsFile, refined); err != nil {
			return "", fmt.Errorf("write refined requirements: %w", err)
		}

		if s.Prompts.ConfirmRefinementAccept(refined) {
			return refined, nil
		}
	}
}
