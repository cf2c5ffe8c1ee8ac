package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

const (
	Chat                         = "chat"
	Help                         = "help"
	InterviewQuestionsExperience = "interview_questions_experience"
	InterviewQuestionsRole       = "interview_questions_role"
	ExcludeSimilar               = "exclude_similar"
	JobSections                  = "job_sections"
)

var required = []string{Chat, Help, InterviewQuestionsExperience, InterviewQuestionsRole, ExcludeSimilar, JobSections}

var ErrUnknownTemplate = errors.New("unknown prompt template")

var placeholderRe = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

// Set is a named collection of prompt templates.
type Set struct {
	templates map[string]string
}

type file struct {
	Templates map[string]string `yaml:"templates"`
}

// Default returns the embedded template set.
func Default() *Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return s
}

// Load reads templates from path, falling back to the embedded set for
// any template the file does not define.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	s := Default()
	for name, tpl := range f.Templates {
		s.templates[name] = tpl
	}
	return s, nil
}

func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	for _, name := range required {
		if strings.TrimSpace(f.Templates[name]) == "" {
			return nil, fmt.Errorf("%w: %s is missing", ErrUnknownTemplate, name)
		}
	}
	return &Set{templates: f.Templates}, nil
}

// Render resolves {placeholders} in the named template.
func (s *Set) Render(name string, vars map[string]string) (string, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
	return strings.TrimSpace(out), nil
}

// Placeholders lists the variable names a template uses.
func (s *Set) Placeholders(name string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(s.templates[name], -1) {
		seen[m[1]] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
