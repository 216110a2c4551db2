// Package validator checks scenario files before a run. It parses every file
// upfront, validates each scenario separately, and collects all errors so a
// broken plan can be fixed in one pass.
package validator

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File     string
	Scenario string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("%s: scenario %q: %s", e.File, e.Scenario, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of scenario file paths in execution order.
	Files []string
	// Plan joins the selected scenarios of every valid file.
	Plan *scenario.Plan
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates scenario files.
type Validator struct {
	include []string
	exclude []string
}

// New creates a Validator. include and exclude are scenario id patterns in
// path.Match syntax; an empty include selects every scenario.
func New(include, exclude []string) *Validator {
	return &Validator{include: include, exclude: exclude}
}

// Validate validates files and directories in order. Directories are
// scanned recursively for .yaml and .yml files.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{Plan: &scenario.Plan{}}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: p, Message: fmt.Sprintf("cannot access: %v", err)})
			continue
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := collectScenarioFiles(p)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: p, Message: fmt.Sprintf("failed to scan directory: %v", err)})
			continue
		}
		if len(found) == 0 {
			result.Errors = append(result.Errors, &ValidationError{File: p, Message: "no scenario files found"})
			continue
		}
		files = append(files, found...)
	}

	owners := make(map[string]string)
	seen := make(map[string]bool)
	for _, file := range files {
		if seen[file] {
			continue
		}
		seen[file] = true
		v.validateFile(file, result, owners)
	}

	result.Plan.SourcePath = strings.Join(result.Files, ", ")
	if len(result.Errors) == 0 && len(result.Plan.Scenarios) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			File:    strings.Join(paths, ", "),
			Message: "no scenarios selected",
		})
	}
	return result
}

// collectScenarioFiles finds all .yaml/.yml files under dir in lexical order.
func collectScenarioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// validateFile parses one file and adds its selected scenarios to the plan.
// owners maps scenario ids to the file that first declared them.
func (v *Validator) validateFile(file string, result *Result, owners map[string]string) {
	plan, err := scenario.ParseFile(file)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{File: file, Message: fmt.Sprintf("parse error: %v", err)})
		return
	}
	result.Files = append(result.Files, file)
	if result.Plan.BusinessGoal == "" {
		result.Plan.BusinessGoal = plan.BusinessGoal
	}

	for i := range plan.Scenarios {
		sc := plan.Scenarios[i]
		if !v.selected(sc.ID) {
			continue
		}
		if prev, dup := owners[sc.ID]; dup {
			result.Errors = append(result.Errors, &ValidationError{
				File: file, Scenario: sc.ID,
				Message: fmt.Sprintf("duplicate scenario id (first declared in %s)", prev),
			})
			continue
		}
		owners[sc.ID] = file

		valid := true
		if err := sc.Validate(); err != nil {
			result.Errors = append(result.Errors, &ValidationError{File: file, Scenario: sc.ID, Message: err.Error()})
			valid = false
		}
		for _, st := range sc.Steps {
			if st.ExpectScript == "" {
				continue
			}
			if _, err := goja.Compile(st.ID, st.ExpectScript, false); err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File: file, Scenario: sc.ID,
					Message: fmt.Sprintf("step %q: expect_script: %v", st.ID, err),
				})
				valid = false
			}
		}
		if valid {
			result.Plan.Scenarios = append(result.Plan.Scenarios, sc)
		}
	}
}

// selected applies the include and exclude patterns to a scenario id.
func (v *Validator) selected(id string) bool {
	if matchAny(v.exclude, id) {
		return false
	}
	return len(v.include) == 0 || matchAny(v.include, id)
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, id); err == nil && ok {
			return true
		}
	}
	return false
}
