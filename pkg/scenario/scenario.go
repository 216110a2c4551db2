package scenario

import (
	"fmt"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Scenario is an ordered list of steps that exercise one user journey.
type Scenario struct {
	ID    string `yaml:"scenario_id" json:"scenario_id"`
	Title string `yaml:"scenario_title" json:"scenario_title"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Plan is a set of scenarios serving one business goal. It has the same
// shape as the JSON run request accepted by the planner's API.
type Plan struct {
	BusinessGoal string     `yaml:"business_goal" json:"business_goal"`
	Scenarios    []Scenario `yaml:"scenarios" json:"scenarios"`

	SourcePath string `yaml:"-" json:"-"`
}

// Validate checks every step and enforces unique step ids within a scenario.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return &core.ExecutionError{
			Category: core.ErrCategoryConfig,
			Code:     "empty_scenario",
			Message:  fmt.Sprintf("scenario %q has no steps", sc.ID),
			Cause:    core.ErrInvalidStep,
		}
	}
	seen := make(map[string]bool, len(sc.Steps))
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if err := st.Validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.ID, err)
		}
		if seen[st.ID] {
			return fmt.Errorf("scenario %q: %w", sc.ID, core.NewStepError(st.ID, "step_id", "duplicate step id"))
		}
		seen[st.ID] = true
	}
	return nil
}

// Validate validates every scenario of the plan.
func (p *Plan) Validate() error {
	if len(p.Scenarios) == 0 {
		return fmt.Errorf("%s: no scenarios", p.SourcePath)
	}
	for i := range p.Scenarios {
		if err := p.Scenarios[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps across all scenarios.
func (p *Plan) StepCount() int {
	n := 0
	for _, sc := range p.Scenarios {
		n += len(sc.Steps)
	}
	return n
}
