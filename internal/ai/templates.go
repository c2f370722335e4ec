package ai

import (
	"embed"
	"fmt"
	"strings"
)

// Template selects the instruction and target JSON shape of an extraction.
type Template int

const (
	TemplateCandidate Template = iota + 1
	TemplateJob
	TemplateATSInsights
	TemplateJobMatch
)

//go:embed prompts/*.md
var promptFS embed.FS

var templateFiles = map[Template]string{
	TemplateCandidate:   "prompts/candidate.md",
	TemplateJob:         "prompts/job.md",
	TemplateATSInsights: "prompts/ats_insights.md",
	TemplateJobMatch:    "prompts/job_match.md",
}

var templateNames = map[Template]string{
	TemplateCandidate:   "candidate",
	TemplateJob:         "job",
	TemplateATSInsights: "ats_insights",
	TemplateJobMatch:    "job_match",
}

func (t Template) String() string {
	if name, ok := templateNames[t]; ok {
		return name
	}
	return fmt.Sprintf("template(%d)", int(t))
}

// ParseTemplate resolves a template by its name.
func ParseTemplate(name string) (Template, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for tpl, n := range templateNames {
		if n == name {
			return tpl, nil
		}
	}
	return 0, fmt.Errorf("unknown extraction template %q", name)
}

// Instruction returns the fixed instruction text for t.
func (t Template) Instruction() (string, error) {
	file, ok := templateFiles[t]
	if !ok {
		return "", fmt.Errorf("unknown extraction template %s", t)
	}

	data, err := promptFS.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s instruction: %w", t, err)
	}

	return strings.TrimSpace(string(data)), nil
}
