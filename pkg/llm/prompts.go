package llm

import (
	"encoding/json"
	"fmt"
)

const locateSystemPrompt = `You are a mobile UI automation assistant. You receive a phone screenshot and a
description of one on-screen element. Reply with JSON only, no prose:
{"found": boolean, "x": integer, "y": integer, "confidence": number between 0 and 1, "reason": string}
x and y are the pixel coordinates of the element's center in the image you were given.
If the element is not visible set found=false.`

func locateUserPrompt(query string, w, h int) string {
	if w > 0 && h > 0 {
		return fmt.Sprintf("Image size: %dx%d pixels.\nElement: %s", w, h, query)
	}
	return "Element: " + query
}

const judgeSystemPrompt = `You are a mobile UI outcome evaluator.

You get a JSON object with:
- business_goal (what the user ultimately wants)
- step_description (what this micro-step tries to do)
- expected_state_hint (what success looks like)
- last_action_args (optional, what was last tried)
and a screenshot of the current screen.

Decide if THIS step is done (ok=true). Only consider the current step, not future ones.
Point to evidence in the current UI; if evidence is ambiguous or missing, set ok=false.
- "open comments": a comment panel or input field is visible.
- "typed comment": the input field contains non-empty user text (not a placeholder) and a send button is visible.
- "share": a share sheet or recipient list is visible.
- "liked": the like button is in the "on" state.

Distinguish required gates (login, OS permission dialogs) from distractions (ads, upsells, unrelated modals).
Required gates: recovery "REQUIRE_AUTH" or "GRANT_PERMISSION". Distractions: recovery "HANDLE_INTERRUPT".

Output strictly JSON:
{"ok": boolean,
 "recovery": one of ["NONE","REDO_STEP","HANDLE_INTERRUPT","REQUIRE_AUTH","GRANT_PERMISSION","REPLAN","ABORT"],
 "reason": string,
 "suggestions": [string],
 "gate_type": one of ["NONE","AUTH","PERMISSION","AD_OR_OTHER"],
 "confidence": number}
If ok=true set recovery="NONE" and suggestions=[].`

func judgeUserPrompt(req JudgeRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode judge request: %w", err)
	}
	return string(b), nil
}
