package evaluator

import (
	"context"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/jsengine"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/uitree"
)

// ScriptJudge evaluates the step's expect_script. The script sees:
//
//	texts, preTexts      visible labels after and before the action
//	changed              whether the screen changed
//	contains(text)       post screen shows text
//	count(keyword)       count next to keyword after the action, or null
//	preCount(keyword)    the same before the action
//	selected(id)         element id is selected or checked after the action
//	step                 {id, target, text}
//
// A truthy result passes, a falsy one fails and a script error is
// inconclusive.
type ScriptJudge struct {
	Log *zap.Logger
}

func (ScriptJudge) Name() string { return "script" }

func (j ScriptJudge) Judge(ctx context.Context, in *Input) Judgement {
	script := in.Step.ExpectScript
	if script == "" {
		return inconclusive("no script")
	}

	eng := jsengine.New(j.Log)
	var preTree *core.Tree
	if in.Pre != nil {
		preTree = in.Pre.Tree
	}
	postTree := in.Post.Tree

	eng.SetVariable("texts", nonNil(uitree.Texts(postTree)))
	eng.SetVariable("preTexts", nonNil(uitree.Texts(preTree)))
	eng.SetVariable("changed", in.Changed())
	eng.SetVariable("contains", func(text string) bool { return uitree.ContainsText(postTree, text) })
	eng.SetVariable("count", countFunc(postTree))
	eng.SetVariable("preCount", countFunc(preTree))
	eng.SetVariable("selected", func(id string) bool {
		e := postTree.Find(func(e *core.Element) bool {
			return e.Visible() && (e.ResourceID == id || e.ShortID() == id)
		})
		return e != nil && (e.Selected || e.Checked)
	})
	eng.SetVariable("step", map[string]string{
		"id":     in.Step.ID,
		"target": in.Step.Target,
		"text":   in.Step.Text,
	})

	ok, err := eng.EvalBool(ctx, script)
	if err != nil {
		return inconclusive(err.Error())
	}
	if ok {
		return Judgement{Outcome: Pass, Reason: "script returned true", Confidence: 1}
	}
	return Judgement{Outcome: Fail, Reason: "script returned false", Confidence: 1}
}

func countFunc(t *core.Tree) func(string) interface{} {
	return func(keyword string) interface{} {
		if t == nil {
			return nil
		}
		if n, ok := countNear(t, keyword); ok {
			return n
		}
		return nil
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
