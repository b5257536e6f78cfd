package cycle

import (
	"fmt"
	"os"
	"strings"

	"github.com/g3labs/planner/internal/artifact"
	"github.com/g3labs/planner/internal/display"
	"github.com/g3labs/planner/internal/g3config"
	"github.com/g3labs/planner/internal/gitbridge"
	"github.com/g3labs/planner/internal/history"
	"github.com/g3labs/planner/internal/llmgateway"
	"github.com/g3labs/planner/internal/retry"
	"github.com/g3labs/planner/internal/workspace"
)

// GitPreflightError wraps a git pre-flight failure at startup.
type GitPreflightError struct {
	Cause error
}

func (e *GitPreflightError) Error() string { return fmt.Sprintf("git pre-flight failed: %v", e.Cause) }
func (e *GitPreflightError) Unwrap() error { return e.Cause }

// ErrUserQuit is returned by any interactive transition the user declines,
// signalling a clean exit with no side effects.
var ErrUserQuit = fmt.Errorf("user quit")

// Session wires together every collaborator the state machine needs: the
// artifact store, history journal, git bridge, display, LLM gateway, and the
// coach/player backends and retry presets. NewSession creates it; Startup is
// the only place that fills in these collaborators.
type Session struct {
	Opts Options

	Store   *artifact.Store
	Journal *history.Journal
	Bridge  *gitbridge.Bridge
	Gate    *gitbridge.CommitGate
	Display *display.Display
	Prompts UserPrompts

	Gateway *llmgateway.Gateway

	CoachBackend   llmgateway.Backend
	PlayerBackend  llmgateway.Backend
	CoachModel     string
	PlayerModel    string
	CoachRetryCfg  retry.Config
	PlayerRetryCfg retry.Config

	Codepath     string
	WorkspaceDir string
}

// NewSession builds a Session without performing any I/O; callers still must
// invoke Startup before running the state machine.
func NewSession(opts Options, prompts UserPrompts) *Session {
	return &Session{
		Opts:    opts,
		Display: display.NewWithOptions(opts.NoColor),
		Prompts: prompts,
	}
}

// Startup performs the pre-flight sequence: flag validation, codepath and
// workspace resolution, G3_WORKSPACE_PATH assignment (before any provider or
// sub-agent is constructed), plan-dir/history ensure, git pre-flight, and
// recovery-state detection. It returns the detected artifact.CycleState so
// the caller can route to RecoveryPrompt or Refine.
func (s *Session) Startup() (artifact.CycleState, error) {
	if err := s.Opts.ValidateFlags(); err != nil {
		return artifact.CycleState{}, err
	}

	codepath, err := workspace.ResolveCodepath(s.Opts.Codepath)
	if err != nil {
		return artifact.CycleState{}, fmt.Errorf("resolve codepath: %w", err)
	}
	s.Codepath = codepath

	workspaceDir, err := workspace.ResolveWorkspace(s.Opts.Workspace)
	if err != nil {
		return artifact.CycleState{}, fmt.Errorf("resolve workspace: %w", err)
	}
	s.WorkspaceDir = workspaceDir

	// Must happen before any provider or sub-agent is constructed so every
	// downstream log lands under <workspace>/logs/.
	if err := os.Setenv("G3_WORKSPACE_PATH", workspaceDir); err != nil {
		return artifact.CycleState{}, fmt.Errorf("set G3_WORKSPACE_PATH: %w", err)
	}

	s.Display.PlannerBox("g3 planning",
		"codepath:  "+codepath,
		"workspace: "+workspaceDir,
	)

	s.Store = artifact.New(codepath)
	if err := s.Store.EnsurePlanDir(); err != nil {
		return artifact.CycleState{}, fmt.Errorf("ensure plan dir: %w", err)
	}
	s.Journal = history.New(s.Store.HistoryPath())

	bridge, err := gitbridge.Open(codepath, !s.Opts.NoGit)
	if err != nil {
		return artifact.CycleState{}, &GitPreflightError{Cause: err}
	}
	s.Bridge = bridge
	s.Gate = gitbridge.NewCommitGate(bridge, s.Journal)

	if !s.Opts.NoGit {
		branch, err := bridge.CurrentBranch()
		if err != nil {
			return artifact.CycleState{}, &GitPreflightError{Cause: err}
		}
		if !s.Prompts.ConfirmBranch(branch) {
			return artifact.CycleState{}, ErrUserQuit
		}

		ignored := map[string]bool{
			artifact.PlanDirName + "/" + artifact.NewRequirementsFile: true,
		}
		clean, err := bridge.WorkingTreeClean(ignored)
		if err != nil {
			return artifact.CycleState{}, &GitPreflightError{Cause: err}
		}
		if !clean && !s.Prompts.ConfirmDirtyTree() {
			return artifact.CycleState{}, ErrUserQuit
		}
	}

	cfg, err := g3config.Load(workspaceDir)
	if err != nil {
		return artifact.CycleState{}, err
	}
	if err := s.initGateways(cfg); err != nil {
		return artifact.CycleState{}, err
	}

	return s.Store.DetectCycleState()
}

// initGateways resolves the planner/coach/player providers and constructs
// the gateway and inner-loop backends/retry presets.
func (s *Session) initGateways(cfg *g3config.Config) error {
	plannerProvider, usedDefault, err := cfg.ResolveProvider("planner")
	if err != nil {
		return err
	}
	if usedDefault {
		s.Display.Info("provider", "planner falling back to default_provider")
	}
	plannerBackend, plannerModel, err := resolveProvider(plannerProvider)
	if err != nil {
		return err
	}
	s.Gateway = llmgateway.New(plannerBackend, s.Display, plannerModel, cfg.Agent.AutonomousMaxRetryAttempts, s.Display)

	coachProvider, usedDefault, err := cfg.ResolveProvider("coach")
	if err != nil {
		return err
	}
	if usedDefault {
		s.Display.Info("provider", "coach falling back to default_provider")
	}
	s.CoachBackend, s.CoachModel, err = resolveProvider(coachProvider)
	if err != nil {
		return err
	}
	s.CoachRetryCfg = retry.CoachPreset()

	playerProvider, usedDefault, err := cfg.ResolveProvider("player")
	if err != nil {
		return err
	}
	if usedDefault {
		s.Display.Info("provider", "player falling back to default_provider")
	}
	s.PlayerBackend, s.PlayerModel, err = resolveProvider(playerProvider)
	if err != nil {
		return err
	}
	s.PlayerRetryCfg = retry.PlayerPreset()

	return nil
}

// resolveProvider parses a "<type>.<name>" provider string into a backend
// and a model name. Providers are CLI-driven: <type> selects the binary and
// <name> is passed through as the model argument.
func resolveProvider(provider string) (llmgateway.Backend, string, error) {
	providerType, model, found := strings.Cut(provider, ".")
	if !found {
		return nil, "", fmt.Errorf("malformed provider %q: expected \"<type>.<name>\"", provider)
	}
	binary, ok := providerBinaries[providerType]
	if !ok {
		binary = providerType
	}
	return llmgateway.NewCLIBackend(binary), model, nil
}

// providerBinaries maps a provider type to its CLI binary name.
var providerBinaries = map[string]string{
	"anthropic": "claude",
}
