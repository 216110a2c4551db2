package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a scenario file (YAML or JSON).
func ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario content. Three shapes are accepted:
//   - a plan: {business_goal, scenarios: [...]}
//   - a single scenario: {scenario_id, scenario_title, steps: [...]}
//   - a bare list of steps, which becomes one scenario named after the file
//
// JSON run requests parse as well since JSON is valid YAML.
func Parse(data []byte, sourcePath string) (*Plan, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: err.Error()}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty scenario file"}
	}
	doc := root.Content[0]

	plan := &Plan{SourcePath: sourcePath}
	switch {
	case doc.Kind == yaml.SequenceNode:
		var steps []Step
		if err := doc.Decode(&steps); err != nil {
			return nil, wrapDecodeError(sourcePath, doc, err)
		}
		plan.Scenarios = []Scenario{{ID: baseName(sourcePath), Title: baseName(sourcePath), Steps: steps}}
	case doc.Kind == yaml.MappingNode && hasKey(doc, "scenarios"):
		if err := doc.Decode(plan); err != nil {
			return nil, wrapDecodeError(sourcePath, doc, err)
		}
	case doc.Kind == yaml.MappingNode && hasKey(doc, "steps"):
		var sc Scenario
		if err := doc.Decode(&sc); err != nil {
			return nil, wrapDecodeError(sourcePath, doc, err)
		}
		if sc.ID == "" {
			sc.ID = baseName(sourcePath)
		}
		plan.Scenarios = []Scenario{sc}
	default:
		return nil, &ParseError{Path: sourcePath, Line: doc.Line, Message: "expected a step list, a scenario or a plan"}
	}

	for i := range plan.Scenarios {
		sc := &plan.Scenarios[i]
		if sc.ID == "" {
			sc.ID = fmt.Sprintf("scenario_%d", i+1)
		}
		for j := range sc.Steps {
			st := &sc.Steps[j]
			if st.ID == "" {
				st.ID = fmt.Sprintf("step_%d", j+1)
			}
			st.normalize()
		}
	}
	return plan, nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

func wrapDecodeError(path string, node *yaml.Node, err error) error {
	return &ParseError{Path: path, Line: node.Line, Message: err.Error()}
}

func baseName(path string) string {
	if path == "" {
		return "scenario"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
