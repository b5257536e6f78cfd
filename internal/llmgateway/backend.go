// Package llmgateway implements the planner LLM gateway: a stateless wrapper
// around a sub-agent CLI that refines requirements, summarises them, and
// drafts commit messages, all through a restricted tool set and all routed
// through the retry driver. The same backend and stream protocol also carry
// the coach/player inner-loop invocations.
package llmgateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Backend runs a sub-agent process and returns its stream-json stdout.
type Backend interface {
	Name() string
	Execute(ctx context.Context, opts ExecuteOptions) (io.ReadCloser, error)
}

// ExecuteOptions carries one sub-agent invocation's parameters.
type ExecuteOptions struct {
	Prompt       string
	ContextFiles []string
	Model        string
	AllowedTools []string
	WorkDir      string
}

// CLIBackend invokes a provider binary as a subprocess, requesting
// stream-json output.
type CLIBackend struct {
	BinaryPath string
}

// NewCLIBackend resolves binaryPath (an absolute path is used as is; a bare
// name is looked up on PATH, then in a few common install locations; an
// empty name defaults to "claude"). It does not parse "<type>.<name>"
// provider strings; callers pass the binary name itself.
func NewCLIBackend(binaryPath string) *CLIBackend {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &CLIBackend{BinaryPath: resolveBinaryPath(binaryPath)}
}

func resolveBinaryPath(binaryPath string) string {
	if filepath.IsAbs(binaryPath) {
		return binaryPath
	}
	if path, err := exec.LookPath(binaryPath); err == nil {
		return path
	}
	home, _ := os.UserHomeDir()
	for _, p := range []string{
		filepath.Join(home, ".claude", "local", "claude"),
		"/usr/local/bin/" + binaryPath,
		"/opt/homebrew/bin/" + binaryPath,
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return binaryPath
}

func (b *CLIBackend) Name() string { return filepath.Base(b.BinaryPath) }

// Execute starts the sub-agent process and returns a reader over its
// stream-json stdout. The caller must Close the reader, which waits for the
// process to exit.
func (b *CLIBackend) Execute(ctx context.Context, opts ExecuteOptions) (io.ReadCloser, error) {
	args := b.buildArgs(opts)

	cmd := exec.CommandContext(ctx, b.BinaryPath, args...)
	cmd.Dir = opts.WorkDir
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, binaryNotFoundError(b.BinaryPath)
		}
		return nil, fmt.Errorf("start sub-agent %q: %w", b.BinaryPath, err)
	}

	return &cmdReader{ReadCloser: stdout, cmd: cmd}, nil
}

func (b *CLIBackend) buildArgs(opts ExecuteOptions) []string {
	var args []string
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.Prompt != "" {
		args = append(args, "-p", opts.Prompt)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	args = append(args, "--output-format", "stream-json", "--verbose")
	args = append(args, opts.ContextFiles...)
	return args
}

func binaryNotFoundError(binaryPath string) error {
	return fmt.Errorf(`sub-agent binary %q not found in PATH

Resolve the provider binary in the workspace config (.g3/config.yaml) or
ensure it is on PATH before running the planner`, binaryPath)
}

// cmdReader waits for the underlying process on Close.
type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *cmdReader) Close() error {
	closeErr := r.ReadCloser.Close()
	waitErr := r.cmd.Wait()
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}
