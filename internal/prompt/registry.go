// Package prompt resolves named prompt templates for extraction units.
package prompt

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// placeholder is replaced with the extracted document text when a
// prompt is built.
const placeholder = "{{PDF_TEXT}}"

// Registry holds the named prompt templates loaded from the prompts
// file. It is read-only after Load and safe for concurrent use.
type Registry struct {
	templates map[string]string
}

type promptsFile struct {
	Templates map[string]string `yaml:"templates"`
}

// Load reads the YAML prompts file and returns a Registry.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var f promptsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("prompts file %s defines no templates", path)
	}
	return &Registry{templates: f.Templates}, nil
}

// Build produces the final prompt for one unit. A non-empty override
// replaces the named template entirely; otherwise promptType must name
// a loaded template.
func (r *Registry) Build(docText, promptType, override string) (string, error) {
	template := override
	if template == "" {
		var ok bool
		template, ok = r.templates[promptType]
		if !ok {
			return "", fmt.Errorf("unknown prompt type %q (known: %s)", promptType, strings.Join(r.Types(), ", "))
		}
	}
	return strings.ReplaceAll(template, placeholder, docText), nil
}

// Types returns the known template names, sorted.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
