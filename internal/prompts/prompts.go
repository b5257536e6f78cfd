// Package prompts holds every prompt the planner sends to a sub-agent.
// Inline prompt literals are forbidden elsewhere in the module: the gateway
// operations and the coach/player agent prompts all load from the embedded
// templates here. A workspace can override any template by placing a file of
// the same name under <workspace>/.g3/prompts/. A template may include
// another with a line of the form "@relative/path.md".
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

//go:embed templates
var templates embed.FS

// Get returns a named prompt from the embedded templates.
func Get(name string) (string, error) {
	return load(name, "")
}

// GetForWorkspace returns a named prompt, consulting the workspace override
// directory before the embedded templates.
func GetForWorkspace(workspaceDir, name string) (string, error) {
	return load(name, overrideDir(workspaceDir))
}

// GetAgentForWorkspace returns an agent prompt (agents/<name>.md) with
// workspace override support.
func GetAgentForWorkspace(workspaceDir, name string) (string, error) {
	return GetForWorkspace(workspaceDir, "agents/"+name)
}

func overrideDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, ".g3", "prompts")
}

func load(name, overrideDir string) (string, error) {
	name = withExt(name)
	content, err := read(name, overrideDir)
	if err != nil {
		return "", err
	}
	return expandIncludes(content, overrideDir, map[string]bool{name: true}), nil
}

// read resolves a template name against the override directory first, then
// the embedded templates.
func read(name, overrideDir string) (string, error) {
	if overrideDir != "" {
		if data, err := os.ReadFile(filepath.Join(overrideDir, name)); err == nil {
			return string(data), nil
		}
	}
	data, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return string(data), nil
}

// includePattern matches a whole line of the form "@path/to/file.md".
var includePattern = regexp.MustCompile(`(?m)^@(\S+\.md)\s*$`)

// expandIncludes replaces @-reference lines with the referenced template's
// content, recursively. seen guards against include cycles.
func expandIncludes(content, overrideDir string, seen map[string]bool) string {
	return includePattern.ReplaceAllStringFunc(content, func(match string) string {
		ref := strings.TrimPrefix(strings.TrimSpace(match), "@")
		if seen[ref] {
			return fmt.Sprintf("<!-- circular include: %s -->", ref)
		}
		seen[ref] = true
		included, err := read(ref, overrideDir)
		if err != nil {
			return fmt.Sprintf("<!-- missing include: %s -->", ref)
		}
		return expandIncludes(included, overrideDir, seen)
	})
}

func withExt(name string) string {
	if strings.HasSuffix(name, ".md") {
		return name
	}
	return name + ".md"
}
