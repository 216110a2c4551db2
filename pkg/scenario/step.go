// Package scenario defines test steps and the YAML scenario files that carry them.
package scenario

import (
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// ActionKind is the kind of action a step performs.
type ActionKind string

// Action kinds.
const (
	ActionTap    ActionKind = "tap"
	ActionSwipe  ActionKind = "swipe"
	ActionScroll ActionKind = "scroll"
	ActionType   ActionKind = "type"
	ActionKey    ActionKind = "key"
	ActionBack   ActionKind = "back"
	ActionLaunch ActionKind = "launch"
	ActionWait   ActionKind = "wait"
)

// Swipe and scroll directions.
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// actionAliases maps the verbs used by planners and hand-written scenarios to
// action kinds. A non-empty direction is implied by the alias.
var actionAliases = map[string]struct {
	kind      ActionKind
	direction string
}{
	"tap":         {ActionTap, ""},
	"click":       {ActionTap, ""},
	"press":       {ActionTap, ""},
	"tap_on":      {ActionTap, ""},
	"long_press":  {ActionTap, ""},
	"swipe":       {ActionSwipe, ""},
	"swipe_up":    {ActionSwipe, DirectionUp},
	"swipe_down":  {ActionSwipe, DirectionDown},
	"swipe_left":  {ActionSwipe, DirectionLeft},
	"swipe_right": {ActionSwipe, DirectionRight},
	"scroll":      {ActionScroll, ""},
	"scroll_up":   {ActionScroll, DirectionUp},
	"scroll_down": {ActionScroll, DirectionDown},
	"type":        {ActionType, ""},
	"input":       {ActionType, ""},
	"input_text":  {ActionType, ""},
	"enter_text":  {ActionType, ""},
	"key":         {ActionKey, ""},
	"key_event":   {ActionKey, ""},
	"press_key":   {ActionKey, ""},
	"back":        {ActionBack, ""},
	"go_back":     {ActionBack, ""},
	"system_back": {ActionBack, ""},
	"launch":      {ActionLaunch, ""},
	"launch_app":  {ActionLaunch, ""},
	"open":        {ActionLaunch, ""},
	"open_app":    {ActionLaunch, ""},
	"wait":        {ActionWait, ""},
	"sleep":       {ActionWait, ""},
	"verify":      {ActionWait, ""},
	"assert":      {ActionWait, ""},
	"observe":     {ActionWait, ""},
	"swipe_video": {ActionSwipe, DirectionUp},
	"next_video":  {ActionSwipe, DirectionUp},

	"system_button": {ActionKey, ""},
}

// NormalizeAction resolves an action alias. ok is false for unknown verbs.
func NormalizeAction(raw string) (kind ActionKind, direction string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	a, ok := actionAliases[key]
	return a.kind, a.direction, ok
}

// Android key codes by name.
var keyCodes = map[string]int{
	"home":        3,
	"back":        4,
	"volume_up":   24,
	"volume_down": 25,
	"power":       26,
	"camera":      27,
	"clear":       28,
	"enter":       66,
	"delete":      67,
	"menu":        82,
	"search":      84,
}

// KeyCode returns the Android key code for a key name.
func KeyCode(name string) (int, bool) {
	code, ok := keyCodes[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// Step is one atomic action with its expected result. Steps are immutable
// once parsed.
type Step struct {
	ID            string     `yaml:"step_id" json:"step_id"`
	Description   string     `yaml:"description" json:"description"`
	Action        ActionKind `yaml:"action_type" json:"action_type"`
	Target        string     `yaml:"target,omitempty" json:"target,omitempty"`
	Alternatives  []string   `yaml:"alternatives,omitempty" json:"alternatives,omitempty"`
	ExpectedState string     `yaml:"expected_state" json:"expected_state"`

	Text         string `yaml:"text,omitempty" json:"text,omitempty"`
	Direction    string `yaml:"direction,omitempty" json:"direction,omitempty"`
	Key          string `yaml:"key,omitempty" json:"key,omitempty"`
	ExpectScript string `yaml:"expect_script,omitempty" json:"expect_script,omitempty"`
	// Query is an optional phrasing of the target for the language model.
	Query string `yaml:"query_for_qwen,omitempty" json:"query_for_qwen,omitempty"`
}

// NeedsTarget reports whether the action must land on a resolved element.
func (s *Step) NeedsTarget() bool {
	switch s.Action {
	case ActionTap:
		return true
	case ActionType:
		return s.Target != "" || len(s.Alternatives) > 0
	default:
		return false
	}
}

// Targets returns the target description followed by its alternatives, in
// order, without blanks or duplicates. A tap without an explicit target falls
// back to the step description.
func (s *Step) Targets() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(q)
		k := strings.ToLower(q)
		if q == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, q)
	}
	add(s.Target)
	for _, alt := range s.Alternatives {
		add(alt)
	}
	if len(out) == 0 && s.Action == ActionTap {
		add(s.Description)
	}
	return out
}

// LLMQuery returns the phrasing sent to the language model for target.
func (s *Step) LLMQuery(target string) string {
	if s.Query != "" && strings.EqualFold(target, s.Target) {
		return s.Query
	}
	return target
}

// Label returns a short human-readable label for logs and reports.
func (s *Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	if s.Target != "" {
		return string(s.Action) + " " + s.Target
	}
	return string(s.Action)
}

// Validate checks that the step can be executed. It runs before the step's
// state machine starts so that a broken definition fails fast.
func (s *Step) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return core.NewStepError(s.ID, "step_id", "step id is required")
	}
	if strings.TrimSpace(s.ExpectedState) == "" {
		return core.NewStepError(s.ID, "expected_state", "expected state is required")
	}
	switch s.Action {
	case ActionTap:
		if len(s.Targets()) == 0 {
			return core.NewStepError(s.ID, "target", "tap requires a target description")
		}
	case ActionType:
		if s.Text == "" {
			return core.NewStepError(s.ID, "text", "type requires text")
		}
	case ActionSwipe, ActionScroll:
		switch s.Direction {
		case "", DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		default:
			return core.NewStepError(s.ID, "direction", "unknown direction "+s.Direction)
		}
	case ActionKey:
		if _, ok := KeyCode(s.Key); !ok {
			return core.NewStepError(s.ID, "key", "unknown key "+s.Key)
		}
	case ActionBack, ActionLaunch, ActionWait:
	default:
		return core.NewStepError(s.ID, "action_type", "unknown action "+string(s.Action))
	}
	return nil
}

// normalize resolves action aliases in place. Called by the parser only.
func (s *Step) normalize() {
	kind, dir, ok := NormalizeAction(string(s.Action))
	if !ok {
		return
	}
	s.Action = kind
	if s.Direction == "" {
		s.Direction = dir
	}
	s.Direction = strings.ToLower(strings.TrimSpace(s.Direction))
	if kind == ActionKey && s.Key == "" {
		s.Key = s.Target
	}
}

// DefaultExpectation returns a generic expected-state hint for ad-hoc steps.
func DefaultExpectation(kind ActionKind) string {
	switch kind {
	case ActionTap:
		return "screen changes after the tap"
	case ActionType:
		return "input field contains the typed text"
	case ActionSwipe, ActionScroll:
		return "content scrolls to show new items"
	case ActionBack:
		return "previous screen is shown"
	case ActionLaunch:
		return "app home screen is visible"
	case ActionKey:
		return "screen changes after the key press"
	default:
		return "screen is stable"
	}
}
