// Package recovery dismisses interruptions so the step can be retried.
package recovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/interrupt"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/locator"
)

// dismissIDs are resource ids of close and negative buttons.
var dismissIDs = []string{"close", "close_button", "btn_close", "ad_close", "dismiss", "skip", "android:id/button2"}

// adCorners are where interstitial close buttons usually sit, as fractions
// of the screen size.
var adCorners = [][2]float64{{0.97, 0.03}, {0.95, 0.07}, {0.05, 0.05}, {0.5, 0.92}}

// Options configures a Recoverer.
type Options struct {
	ActionTimeout time.Duration
}

// Recoverer performs one recovery action per call.
type Recoverer struct {
	device  core.Device
	locator *locator.Resolver
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

// New creates a recoverer. loc resolves dismiss affordances; nil uses the
// default threshold.
func New(device core.Device, loc *locator.Resolver, opts Options, log *zap.Logger) *Recoverer {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = locator.New(locator.DefaultThreshold)
	}
	return &Recoverer{device: device, locator: loc, opts: opts, log: log.Named("recovery"), now: time.Now}
}

// Recover tries to clear an interruption of the given kind from snap. It
// taps an allow or dismiss affordance when one is found and presses back
// otherwise. The result is always flagged as a recovery.
func (r *Recoverer) Recover(ctx context.Context, kind core.InterruptionKind, snap *core.Snapshot) core.ActionResult {
	res := r.recover(ctx, kind, snap)
	res.Recovery = true
	res.Timestamp = r.now()
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	r.log.Info("recovery", zap.String("kind", string(kind)), zap.String("action", res.Action),
		zap.Bool("performed", res.Performed), zap.String("response", res.Response))
	return res
}

func (r *Recoverer) recover(ctx context.Context, kind core.InterruptionKind, snap *core.Snapshot) core.ActionResult {
	var scopes []*core.Tree
	if snap != nil && snap.Tree != nil {
		if d := interrupt.Detect(snap, nil); d.Found() && d.Overlay != nil {
			scopes = append(scopes, subtree(d.Overlay))
		}
		scopes = append(scopes, snap.Tree)
	}

	switch kind {
	case core.InterruptionPermission:
		if res, ok := r.tapFirst(ctx, scopes, "allow", interrupt.AllowIDs, interrupt.AllowTexts); ok {
			return res
		}
		if res, ok := r.tapFirst(ctx, scopes, "dismiss", dismissIDs, interrupt.CloseTexts); ok {
			return res
		}
	case core.InterruptionDialog, core.InterruptionLoginWall:
		if res, ok := r.tapFirst(ctx, scopes, "dismiss", dismissIDs, interrupt.CloseTexts); ok {
			return res
		}
	case core.InterruptionAd:
		if res, ok := r.tapFirst(ctx, scopes, "dismiss", dismissIDs, interrupt.CloseTexts); ok {
			return res
		}
		if res, ok := r.tapCorner(ctx, snap); ok {
			return res
		}
	}
	return r.back(ctx)
}

// tapFirst taps the first selector that resolves. Texts are tried before ids
// and the overlay before the whole screen.
func (r *Recoverer) tapFirst(ctx context.Context, scopes []*core.Tree, what string, ids, texts []string) (core.ActionResult, bool) {
	for _, tree := range scopes {
		for _, q := range texts {
			if t, ok := r.locator.ResolveWith(tree, q, locator.RuleContentDesc, locator.RuleExactText); ok {
				if res, ok := r.tap(ctx, t, fmt.Sprintf("%s %q", what, q)); ok {
					return res, true
				}
			}
		}
		for _, id := range ids {
			if t, ok := r.locator.ResolveWith(tree, id, locator.RuleID); ok {
				if res, ok := r.tap(ctx, t, fmt.Sprintf("%s #%s", what, id)); ok {
					return res, true
				}
			}
		}
	}
	return core.ActionResult{}, false
}

// tapCorner taps the first corner covered by a clickable element, or the
// top-right corner when none is.
func (r *Recoverer) tapCorner(ctx context.Context, snap *core.Snapshot) (core.ActionResult, bool) {
	if snap == nil || snap.Width <= 0 || snap.Height <= 0 {
		return core.ActionResult{}, false
	}
	points := make([]core.Point, len(adCorners))
	for i, c := range adCorners {
		points[i] = core.Point{X: int(c[0] * float64(snap.Width)), Y: int(c[1] * float64(snap.Height))}
	}
	p := points[0]
	if snap.Tree != nil {
		for _, cand := range points {
			if snap.Tree.SmallestClickableAt(cand) != nil {
				p = cand
				break
			}
		}
	}
	t := &core.ResolvedTarget{Source: core.SourceStructural, Query: "ad corner", Point: p}
	return r.tap(ctx, t, fmt.Sprintf("ad corner (%d,%d)", p.X, p.Y))
}

func (r *Recoverer) tap(ctx context.Context, t *core.ResolvedTarget, what string) (core.ActionResult, bool) {
	p := t.Point
	if err := r.call(ctx, func(ctx context.Context) error { return r.device.Tap(ctx, p.X, p.Y) }); err != nil {
		r.log.Warn("recovery tap failed", zap.String("what", what), zap.Error(err))
		return core.ActionResult{}, false
	}
	return core.ActionResult{
		Action:    "tap",
		Performed: true,
		Target:    t,
		Point:     &p,
		Response:  fmt.Sprintf("Tapped %s at (%d,%d)", what, p.X, p.Y),
	}, true
}

func (r *Recoverer) back(ctx context.Context) core.ActionResult {
	if err := r.call(ctx, r.device.Back); err != nil {
		return core.ActionResult{Action: "back", Err: fmt.Errorf("recovery back: %w", err)}
	}
	return core.ActionResult{Action: "back", Performed: true, Response: "Pressed back"}
}

func (r *Recoverer) call(ctx context.Context, fn func(context.Context) error) error {
	if r.opts.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ActionTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// subtree flattens root and its descendants into a tree.
func subtree(root *core.Element) *core.Tree {
	t := &core.Tree{Roots: []*core.Element{root}}
	var walk func(*core.Element)
	walk = func(e *core.Element) {
		t.Elements = append(t.Elements, e)
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)
	return t
}
