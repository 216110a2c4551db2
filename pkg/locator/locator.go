// Package locator resolves a target description against the structural UI tree.
package locator

import (
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/textmatch"
)

// DefaultThreshold is the minimum fuzzy similarity accepted by RuleFuzzy.
const DefaultThreshold = 0.75

// Rule is one structural matching rule.
type Rule string

const (
	RuleID          Rule = "id"
	RuleContentDesc Rule = "content-desc"
	RuleText        Rule = "text"
	RuleExactText   Rule = "exact-text"
	RuleFuzzy       Rule = "fuzzy"
)

// DefaultRules is the priority order used by Resolve.
var DefaultRules = []Rule{RuleID, RuleContentDesc, RuleText, RuleFuzzy}

// confidence reported per rule; fuzzy matches report their score.
var ruleConfidence = map[Rule]float64{
	RuleID:          1.0,
	RuleContentDesc: 1.0,
	RuleExactText:   1.0,
	RuleText:        0.9,
}

// Resolver matches queries against UI trees. It holds configuration only.
type Resolver struct {
	threshold float64
}

// New creates a resolver. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold}
}

// Threshold returns the fuzzy similarity threshold.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Resolve applies DefaultRules in order.
func (r *Resolver) Resolve(tree *core.Tree, query string) (*core.ResolvedTarget, bool) {
	return r.ResolveWith(tree, query, DefaultRules...)
}

// ResolveWith applies rules in the given order. The first rule that yields any
// candidate decides; among its candidates the largest on-screen area wins and
// ties keep document order. The returned box is clipped to the screen.
func (r *Resolver) ResolveWith(tree *core.Tree, query string, rules ...Rule) (*core.ResolvedTarget, bool) {
	q := cleanQuery(query)
	if q == "" || tree.Len() == 0 {
		return nil, false
	}
	visible := tree.Visible()

	for _, rule := range rules {
		best, score := r.match(rule, tree, visible, q)
		if best == nil {
			continue
		}
		conf, ok := ruleConfidence[rule]
		if !ok {
			conf = score
		}
		box := tree.OnScreen(best.Bounds)
		return &core.ResolvedTarget{
			Source:     core.SourceStructural,
			Query:      query,
			Point:      box.Center(),
			Box:        &box,
			Confidence: conf,
			Element:    best,
		}, true
	}
	return nil, false
}

func (r *Resolver) match(rule Rule, tree *core.Tree, elems []*core.Element, q string) (*core.Element, float64) {
	var (
		best      *core.Element
		bestArea  int
		bestScore float64
	)
	consider := func(e *core.Element, score float64) {
		area := tree.OnScreen(e.Bounds).Area()
		if area == 0 {
			return
		}
		if best == nil || area > bestArea {
			best, bestArea, bestScore = e, area, score
		}
	}

	switch rule {
	case RuleID:
		for _, e := range elems {
			if e.ResourceID != "" && (e.ResourceID == q || e.ShortID() == q) {
				consider(e, 1)
			}
		}
	case RuleContentDesc:
		for _, e := range elems {
			if e.ContentDesc != "" && strings.EqualFold(strings.TrimSpace(e.ContentDesc), q) {
				consider(e, 1)
			}
		}
	case RuleExactText:
		for _, e := range elems {
			if e.Text != "" && textmatch.Normalize(e.Text) == textmatch.Normalize(q) {
				consider(e, 1)
			}
		}
	case RuleText:
		needle := textmatch.Core(q)
		if needle == "" {
			return nil, 0
		}
		for _, e := range elems {
			if e.Text != "" && strings.Contains(textmatch.Normalize(e.Text), needle) {
				consider(e, 1)
			}
		}
	case RuleFuzzy:
		needle := textmatch.Core(q)
		for _, e := range elems {
			s := max(textmatch.Similarity(needle, e.Text), textmatch.Similarity(needle, e.ContentDesc))
			if s >= r.threshold {
				consider(e, s)
			}
		}
	}
	return best, bestScore
}

var quotes = strings.NewReplacer(`"`, "", "“", "", "”", "", "‘", "", "’", "", "`", "")

// cleanQuery removes quotes and surrounding whitespace.
func cleanQuery(q string) string {
	return strings.TrimSpace(quotes.Replace(q))
}
