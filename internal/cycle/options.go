// Package cycle implements the planner's top-level state machine: Startup,
// RecoveryPrompt, Refine, Implement (the coach/player inner loop), and
// Complete, wired together with the artifact store, history journal, git
// bridge, LLM gateway, retry driver, and feedback extractor built elsewhere
// in this module. Commits go through gitbridge.CommitGate, which couples
// every commit to a preceding history-journal write; the raw commit is not
// reachable from this package.
package cycle

import "errors"

// ErrMutuallyExclusiveFlags is returned by Options.ValidateFlags when
// --planning is combined with any other top-level mode flag.
var ErrMutuallyExclusiveFlags = errors.New("--planning is mutually exclusive with --autonomous, --auto, and --chat")

// DefaultMaxTurns bounds the coach/player inner loop when --max-turns is unset.
const DefaultMaxTurns = 10

// Options carries the planner-relevant CLI flags.
type Options struct {
	Planning   bool
	Autonomous bool
	Auto       bool
	Chat       bool
	Task       string // ignored when Planning is set

	Codepath  string
	Workspace string
	NoGit     bool
	MaxTurns  int
	NoColor   bool
}

// ValidateFlags enforces the mutual exclusion of --planning with the other
// top-level mode flags. --task is silently ignored in planning mode rather
// than rejected.
func (o *Options) ValidateFlags() error {
	if o.Planning && (o.Autonomous || o.Auto || o.Chat) {
		return ErrMutuallyExclusiveFlags
	}
	return nil
}

// maxTurns returns MaxTurns, defaulting when unset or non-positive.
func (o *Options) maxTurns() int {
	if o.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return o.MaxTurns
}
