// Package cli wires the planner's cobra root command: flag parsing for the
// interactive planning mode, delegating the actual state machine to
// internal/cycle.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g3labs/planner/internal/cycle"
)

var (
	// Version is set by goreleaser via ldflags.
	Version = "dev"

	opts cycle.Options
)

var rootCmd = &cobra.Command{
	Use:   "g3",
	Short: "Crash-resumable planning and implementation cycles for a codebase",
	Long: `g3 runs a planning/implementation cycle against a codebase: it refines a
plain-language requirements draft with a planner sub-agent, drives a
coach/player sub-agent loop to implement it, and commits the result once the
checklist is satisfied. Every phase is journaled so a crash mid-cycle can be
resumed exactly where it left off.

  g3 --planning --codepath ./my-project
  g3 --planning --codepath ./my-project --no-git
  g3 --planning --codepath ./my-project --max-turns 20`,
	Version:      Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := opts.ValidateFlags(); err != nil {
			return err
		}
		if !opts.Planning {
			return cmd.Help()
		}
		return cycle.Run(context.Background(), opts, cycle.NewConsolePrompts())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVar(&opts.Planning, "planning", false, "enable the planning/implementation cycle")
	flags.BoolVar(&opts.Autonomous, "autonomous", false, "enable autonomous mode (mutually exclusive with --planning)")
	flags.BoolVar(&opts.Auto, "auto", false, "alias of --autonomous")
	flags.BoolVar(&opts.Chat, "chat", false, "enable interactive chat mode (mutually exclusive with --planning)")
	flags.StringVar(&opts.Task, "task", "", "task description (ignored in planning mode)")
	flags.StringVar(&opts.Codepath, "codepath", ".", "path to the codebase being planned/implemented")
	flags.StringVar(&opts.Workspace, "workspace", ".", "path to the workspace used for logs")
	flags.BoolVar(&opts.NoGit, "no-git", false, "disable git interaction (planning mode only)")
	flags.IntVar(&opts.MaxTurns, "max-turns", cycle.DefaultMaxTurns, "coach/player inner loop turn bound")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("g3 version %s\n", Version))
}
