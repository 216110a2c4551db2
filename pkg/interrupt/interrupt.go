// Package interrupt recognizes overlays that block the intended flow:
// runtime permission prompts, dialogs, ads, login walls and foreign windows.
package interrupt

import (
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/textmatch"
)

// PermissionPackage owns the Android runtime permission dialog.
const PermissionPackage = "com.android.permissioncontroller"

// Modal geometry: an overlay covering more than ModalCoverage of the screen
// with its center inside the middle band.
const (
	ModalCoverage = 0.60
	modalMinX     = 0.20
	modalMaxX     = 0.80
	modalMinY     = 0.15
	modalMaxY     = 0.85
)

// DialogClasses are window classes used by dialogs and sheets.
var DialogClasses = []string{
	"android.app.Dialog",
	"androidx.appcompat.app.AlertDialog",
	"android.widget.PopupWindow$PopupDecorView",
	"com.google.android.material.bottomsheet.BottomSheetDialog",
}

// dialogIDs are the framework ids of AlertDialog parts.
var dialogIDs = map[string]bool{
	"android:id/parentPanel": true,
	"android:id/alertTitle":  true,
	"android:id/message":     true,
	"android:id/button1":     true,
	"android:id/button2":     true,
	"android:id/button3":     true,
}

// CloseTexts are the labels of dismiss affordances, most specific first.
var CloseTexts = []string{"close ad", "close", "skip", "not now", "no thanks", "cancel", "dismiss", "x"}

// AllowIDs and AllowTexts select the grant button of a permission prompt.
var (
	AllowIDs = []string{
		"permission_allow_foreground_only_button",
		"permission_allow_button",
		"permission_allow_one_time_button",
		"com.android.packageinstaller:id/permission_allow_button",
	}
	AllowTexts = []string{"while using the app", "only this time", "allow"}
)

var (
	adHints         = []string{"ad", "ads", "advert", "advertisement", "sponsored", "promo", "offer", "upgrade", "try premium"}
	loginHints      = []string{"sign in", "log in", "login", "continue with", "google", "facebook", "apple"}
	loginWallHints  = []string{"log in", "sign in", "continue with"}
	permissionHints = []string{"allow", "deny", "while using the app", "only this time"}
	adIDPrefixes    = []string{"ad_", "promo_", "offer_", "interstitial", "com.google.android.gms.ads"}

	// Steps about these subjects expect login and permission screens.
	allowlist = []string{"record", "camera", "microphone", "login", "log in", "sign in"}

	expectWords = map[core.InterruptionKind][]string{
		core.InterruptionPermission: {"permission", "allow", "record", "camera", "microphone"},
		core.InterruptionLoginWall:  {"login", "log in", "logged in", "sign in", "signed in"},
	}
)

// Detection is the overlay found on a screen. Kind is InterruptionNone when
// the screen is clear.
type Detection struct {
	Kind    core.InterruptionKind
	Reason  string
	Overlay *core.Element
}

// Found reports whether an interruption was detected.
func (d Detection) Found() bool { return d.Kind != core.InterruptionNone }

// Detect inspects snap for an interruption. step may be nil; when given, a
// login wall or permission prompt the step itself is about is not reported.
func Detect(snap *core.Snapshot, step *scenario.Step) Detection {
	if snap == nil || snap.Tree == nil || len(snap.Tree.Roots) == 0 {
		return Detection{}
	}
	screen := snap.Screen()
	if screen.Empty() {
		screen = snap.Tree.Roots[0].Bounds
	}
	d := detect(snap.Tree, screen)
	if d.Found() && expected(step, d.Kind) {
		return Detection{}
	}
	return d
}

func detect(tree *core.Tree, screen core.Bounds) Detection {
	app := tree.Roots[0].Package
	visible := tree.Visible()

	for _, e := range visible {
		if e.Depth == 0 {
			continue
		}
		if effectivePackage(e) == PermissionPackage ||
			strings.Contains(e.ResourceID, "permission_allow") ||
			hasAnyPhrase(e.Text, "while using the app", "only this time") {
			return Detection{Kind: core.InterruptionPermission, Reason: "permission prompt: " + e.Label(), Overlay: overlayOf(e)}
		}
	}

	for _, e := range visible {
		if e.Depth == 0 || !isDialog(e) {
			continue
		}
		root := dialogRoot(e)
		text := subtreeText(root)
		switch {
		case hasAnyPhrase(text, permissionHints...):
			return Detection{Kind: core.InterruptionPermission, Reason: "permission dialog", Overlay: root}
		case hasAnyPhrase(text, loginHints...):
			return Detection{Kind: core.InterruptionLoginWall, Reason: "login dialog", Overlay: root}
		case hasAnyPhrase(text, adHints...):
			return Detection{Kind: core.InterruptionAd, Reason: "ad dialog", Overlay: root}
		}
		return Detection{Kind: core.InterruptionDialog, Reason: "dialog: " + firstLabel(root), Overlay: root}
	}

	for _, e := range visible {
		if e.Depth == 0 {
			continue
		}
		if hasAdID(e) || (isModal(e, screen) && hasAnyPhrase(subtreeText(e), adHints...)) {
			return Detection{Kind: core.InterruptionAd, Reason: "ad overlay: " + e.ResourceID, Overlay: e}
		}
	}

	for _, e := range visible {
		if e.Depth == 0 || !isModal(e, screen) {
			continue
		}
		if hasAnyPhrase(subtreeText(e), loginWallHints...) {
			return Detection{Kind: core.InterruptionLoginWall, Reason: "login wall", Overlay: e}
		}
	}

	for _, e := range visible {
		if e.Depth == 0 {
			continue
		}
		if pkg := effectivePackage(e); pkg != "" && app != "" && pkg != app && coverage(e, screen) > ModalCoverage {
			return Detection{Kind: core.InterruptionUnknown, Reason: "foreign window: " + pkg, Overlay: e}
		}
	}
	return Detection{}
}

// expected reports whether the step is about the detected screen.
func expected(step *scenario.Step, kind core.InterruptionKind) bool {
	words, ok := expectWords[kind]
	if step == nil || !ok {
		return false
	}
	about := step.Description + " " + step.Target
	return hasAnyPhrase(about, allowlist...) && hasAnyPhrase(step.ExpectedState, words...)
}

func effectivePackage(e *core.Element) string {
	for cur := e; cur != nil; cur = cur.Parent {
		if cur.Package != "" {
			return cur.Package
		}
	}
	return ""
}

func isDialog(e *core.Element) bool {
	for _, c := range DialogClasses {
		if e.Class == c {
			return true
		}
	}
	return dialogIDs[e.ResourceID]
}

// dialogRoot climbs from a dialog part to its panel.
func dialogRoot(e *core.Element) *core.Element {
	if e.ResourceID == "android:id/parentPanel" || !dialogIDs[e.ResourceID] {
		return e
	}
	for cur := e.Parent; cur != nil && cur.Depth > 0; cur = cur.Parent {
		if cur.ResourceID == "android:id/parentPanel" || isDialog(cur) {
			return cur
		}
	}
	if e.Parent != nil && e.Parent.Depth > 0 {
		return e.Parent
	}
	return e
}

// overlayOf returns the outermost non-root ancestor of e that shares its
// package.
func overlayOf(e *core.Element) *core.Element {
	pkg := effectivePackage(e)
	out := e
	for cur := e.Parent; cur != nil && cur.Depth > 0; cur = cur.Parent {
		if effectivePackage(cur) != pkg {
			break
		}
		out = cur
	}
	return out
}

func hasAdID(e *core.Element) bool {
	if e.ResourceID == "" {
		return false
	}
	id := strings.ToLower(e.ShortID())
	full := strings.ToLower(e.ResourceID)
	for _, p := range adIDPrefixes {
		if strings.HasPrefix(id, p) || strings.HasPrefix(full, p) {
			return true
		}
	}
	return false
}

func coverage(e *core.Element, screen core.Bounds) float64 {
	if screen.Empty() {
		return 0
	}
	return float64(e.Bounds.Intersect(screen).Area()) / float64(screen.Area())
}

func isModal(e *core.Element, screen core.Bounds) bool {
	if coverage(e, screen) <= ModalCoverage {
		return false
	}
	c := e.Bounds.Center()
	fx := float64(c.X-screen.X) / float64(screen.Width)
	fy := float64(c.Y-screen.Y) / float64(screen.Height)
	return fx >= modalMinX && fx <= modalMaxX && fy >= modalMinY && fy <= modalMaxY
}

func subtreeText(e *core.Element) string {
	var sb strings.Builder
	var walk func(*core.Element)
	walk = func(n *core.Element) {
		for _, s := range []string{n.Text, n.ContentDesc, n.HintText} {
			if s != "" {
				sb.WriteString(s)
				sb.WriteString(" . ")
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return sb.String()
}

func firstLabel(e *core.Element) string {
	if e.Text != "" || e.ContentDesc != "" {
		return e.Label()
	}
	for _, c := range e.Children {
		if l := firstLabel(c); l != "" {
			return l
		}
	}
	return e.ResourceID
}

func hasAnyPhrase(s string, phrases ...string) bool {
	for _, p := range phrases {
		if textmatch.ContainsWords(s, p) {
			return true
		}
	}
	return false
}
