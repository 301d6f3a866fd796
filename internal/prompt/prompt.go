// Package prompt fills the agent's system prompt with per-call variables.
package prompt

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Placeholder returns the marker for name as it appears in a template.
func Placeholder(name string) string {
	return "{{" + name + "}}"
}

// Render replaces every occurrence of {{key}} in template with vars[key].
// Keys are applied in sorted order; placeholders without a matching key
// are left as they are. Render does not modify its inputs.
func Render(template string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := template
	for _, k := range keys {
		out = strings.ReplaceAll(out, Placeholder(k), vars[k])
	}
	return out
}

// FirstMessage is the agent's opening line for the named callee.
func FirstMessage(name string) string {
	return fmt.Sprintf("Hey %s! Nice to chat with you, how are you today?", name)
}

// Load reads a template from path. An empty path returns SystemPrompt.
func Load(path string) (string, error) {
	if path == "" {
		return SystemPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("prompt template %s is empty", path)
	}
	return string(b), nil
}
