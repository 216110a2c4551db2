package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/textmatch"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/uitree"
)

var (
	countDeltaRe = regexp.MustCompile(`(?i)\b([a-z]+)\s+count\s+(?:\w+\s+)?(incremented|increments|increment|increased|increases|increase|goes up|up|decremented|decrements|decrement|decreased|decreases|decrease|goes down|down)\b`)
	toggleOnRe   = regexp.MustCompile(`(?i)\b(selected|checked|liked|toggled|highlighted|active|filled|saved|followed|favorited|turned on)\b`)
	toggleOffRe  = regexp.MustCompile(`(?i)\b(unselected|deselected|unchecked|unliked|unsaved|unfollowed|turned off)\b`)
	quotedRe     = regexp.MustCompile(`["“]([^"”]{2,})["”]`)
	changeRe     = regexp.MustCompile(`(?i)\b(screen changes|screen changed|content scrolls|new items|previous screen|screen updates)\b`)
)

// stateWords carry no evidence about which element changed.
var stateWords = map[string]bool{
	"is": true, "are": true, "be": true, "was": true, "should": true, "now": true,
	"shown": true, "visible": true, "displayed": true, "appears": true, "open": true,
	"opened": true, "opens": true, "screen": true, "page": true, "view": true,
	"and": true, "with": true, "in": true, "for": true, "after": true, "it": true,
	"count": true, "state": true, "user": true, "can": true, "see": true,
}

// StructuralJudge checks the expected state against the post tree: count
// deltas, toggles, quoted text and keywords on newly shown elements.
type StructuralJudge struct{}

func (StructuralJudge) Name() string { return "structural" }

func (StructuralJudge) Judge(_ context.Context, in *Input) Judgement {
	expected := in.Step.ExpectedState
	post := in.Post.Tree

	if m := countDeltaRe.FindStringSubmatch(expected); m != nil && in.Pre != nil {
		if res, ok := judgeCount(in.Pre.Tree, post, strings.ToLower(m[1]), strings.ToLower(m[2])); ok {
			return res
		}
	}

	if in.Pre != nil {
		if toggleOffRe.MatchString(expected) {
			if e := flipped(in, false); e != nil {
				return Judgement{Outcome: Pass, Reason: fmt.Sprintf("%q turned off", e.Label()), Confidence: 0.9}
			}
		} else if toggleOnRe.MatchString(expected) {
			if e := flipped(in, true); e != nil {
				return Judgement{Outcome: Pass, Reason: fmt.Sprintf("%q turned on", e.Label()), Confidence: 0.9}
			}
		}
	}

	for _, m := range quotedRe.FindAllStringSubmatch(expected, -1) {
		if uitree.ContainsText(post, m[1]) {
			return Judgement{Outcome: Pass, Reason: fmt.Sprintf("%q is shown", m[1]), Confidence: 0.9}
		}
	}

	if changeRe.MatchString(expected) && in.Pre != nil && in.Changed() {
		return Judgement{Outcome: Pass, Reason: "screen changed", Confidence: 0.6}
	}

	if in.Pre != nil && in.Changed() {
		if res, ok := judgeKeywords(in, expected); ok {
			return res
		}
	}
	return inconclusive("no structural evidence")
}

func judgeCount(pre, post *core.Tree, keyword, direction string) (Judgement, bool) {
	before, ok1 := countNear(pre, keyword)
	after, ok2 := countNear(post, keyword)
	if !ok1 || !ok2 {
		return Judgement{}, false
	}
	up := strings.HasPrefix(direction, "incr") || strings.HasSuffix(direction, "up")
	reason := fmt.Sprintf("%s count %d -> %d", keyword, before, after)
	switch {
	case after == before:
		return Judgement{}, false
	case (after > before) == up:
		return Judgement{Outcome: Pass, Reason: reason, Confidence: 1}, true
	default:
		return Judgement{Outcome: Fail, Reason: reason, Confidence: 1}, true
	}
}

// countNear also tries the singular of a plural keyword ("likes").
func countNear(t *core.Tree, keyword string) (int, bool) {
	if n, ok := uitree.CountNear(t, keyword); ok {
		return n, true
	}
	if s := strings.TrimSuffix(keyword, "s"); s != keyword && len(s) >= 3 {
		return uitree.CountNear(t, s)
	}
	return 0, false
}

// flipped returns a post element named by the expected state whose
// selected or checked flag changed to on.
func flipped(in *Input, on bool) *core.Element {
	tokens := keywords(in.Step.ExpectedState + " " + in.Step.Target)
	if len(tokens) == 0 {
		return nil
	}
	for _, e := range in.Post.Tree.Visible() {
		if (e.Selected || e.Checked) != on || !labelHasAny(e, tokens) {
			continue
		}
		before := counterpart(in.Pre.Tree, e)
		if before != nil && (before.Selected || before.Checked) != on {
			return e
		}
	}
	return nil
}

// counterpart finds the element of t that corresponds to e: same resource id,
// else same position in document order.
func counterpart(t *core.Tree, e *core.Element) *core.Element {
	if t == nil {
		return nil
	}
	if e.ResourceID != "" {
		if m := t.Find(func(o *core.Element) bool { return o.ResourceID == e.ResourceID }); m != nil {
			return m
		}
	}
	if e.Index < len(t.Elements) && t.Elements[e.Index].Class == e.Class {
		return t.Elements[e.Index]
	}
	return nil
}

// judgeKeywords passes when at least half of the expected-state keywords
// appear on elements that were not on the pre screen.
func judgeKeywords(in *Input, expected string) (Judgement, bool) {
	tokens := keywords(expected)
	if len(tokens) == 0 {
		return Judgement{}, false
	}
	seen := make(map[string]bool)
	for _, e := range in.Pre.Tree.Visible() {
		seen[labelKey(e)] = true
	}
	var fresh []*core.Element
	for _, e := range in.Post.Tree.Visible() {
		if !seen[labelKey(e)] {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return Judgement{}, false
	}

	var hits []string
	for _, tok := range tokens {
		for _, e := range fresh {
			if labelHasAny(e, []string{tok}) {
				hits = append(hits, tok)
				break
			}
		}
	}
	if len(hits) == 0 || 2*len(hits) < len(tokens) {
		return Judgement{}, false
	}
	return Judgement{
		Outcome:    Pass,
		Reason:     "new elements mention " + strings.Join(hits, ", "),
		Confidence: 0.6,
	}, true
}

// keywords returns the stemmed content words of s.
func keywords(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range textmatch.Tokens(textmatch.Core(s)) {
		if stateWords[tok] || len(tok) < 3 {
			continue
		}
		tok = stem(tok)
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

func stem(tok string) string {
	for _, suf := range []string{"ing", "ed", "es", "s"} {
		if s := strings.TrimSuffix(tok, suf); s != tok && len(s) >= 3 {
			return s
		}
	}
	return tok
}

func labelKey(e *core.Element) string {
	return e.ResourceID + "|" + e.Text + "|" + e.ContentDesc + "|" + e.HintText
}

func labelHasAny(e *core.Element, tokens []string) bool {
	label := textmatch.Normalize(e.Text + " " + e.ContentDesc + " " + e.HintText + " " + strings.ReplaceAll(e.ShortID(), "_", " "))
	for _, tok := range tokens {
		if strings.Contains(label, tok) {
			return true
		}
	}
	return false
}
