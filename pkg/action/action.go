// Package action performs step actions on a device. It reports what it did
// and never judges whether the step succeeded.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// MaxFuzzyPoints is the length of the full fuzzy-click sequence.
const MaxFuzzyPoints = 5

// Defaults used when Options leaves a field zero.
const (
	DefaultWait          = 2 * time.Second
	DefaultSwipeDuration = 400 * time.Millisecond
)

// Fallback screen size when the device cannot report one.
const (
	fallbackWidth  = 1080
	fallbackHeight = 1920
)

// ErrNoPoint is returned for actions that need a screen point but got none.
var ErrNoPoint = errors.New("action needs a target point")

// Options configures an Executor.
type Options struct {
	// ActionTimeout bounds each device call. Zero disables it.
	ActionTimeout time.Duration
	WaitDuration  time.Duration
	SwipeDuration time.Duration
}

// Executor sends step actions to a device.
type Executor struct {
	device core.Device
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// New creates an executor.
func New(device core.Device, opts Options, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WaitDuration <= 0 {
		opts.WaitDuration = DefaultWait
	}
	if opts.SwipeDuration <= 0 {
		opts.SwipeDuration = DefaultSwipeDuration
	}
	return &Executor{device: device, opts: opts, log: log.Named("action"), now: time.Now}
}

// Execute performs step's action. point overrides the target's own point
// (fuzzy clicking); either may be nil for actions that need no target.
func (x *Executor) Execute(ctx context.Context, step *scenario.Step, target *core.ResolvedTarget, point *core.Point) core.ActionResult {
	res := core.ActionResult{
		Action:    string(step.Action),
		Target:    target,
		Timestamp: x.now(),
	}
	if point == nil && target != nil {
		p := target.Point
		point = &p
	}
	res.Point = point

	msg, err := x.perform(ctx, step, target, point)
	res.Response = msg
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		x.log.Warn("action failed", zap.String("step", step.ID), zap.String("action", res.Action), zap.Error(err))
		return res
	}
	res.Performed = true
	x.log.Debug("action performed", zap.String("step", step.ID), zap.String("response", msg))
	return res
}

func (x *Executor) perform(ctx context.Context, step *scenario.Step, target *core.ResolvedTarget, point *core.Point) (string, error) {
	switch step.Action {
	case scenario.ActionTap:
		if point == nil {
			return "", ErrNoPoint
		}
		return x.tap(ctx, *point)

	case scenario.ActionType:
		var el *core.Element
		if target != nil {
			el = target.Element
		}
		if point != nil {
			if _, err := x.tap(ctx, *point); err != nil {
				return "", fmt.Errorf("focus input: %w", err)
			}
		}
		if err := x.call(ctx, func(ctx context.Context) error { return x.device.TypeText(ctx, el, step.Text) }); err != nil {
			return "", err
		}
		return fmt.Sprintf("Typed %q", step.Text), nil

	case scenario.ActionSwipe, scenario.ActionScroll:
		return x.swipe(ctx, step)

	case scenario.ActionKey:
		code, ok := scenario.KeyCode(step.Key)
		if !ok {
			return "", fmt.Errorf("unknown key %q", step.Key)
		}
		if err := x.call(ctx, func(ctx context.Context) error { return x.device.PressKey(ctx, code) }); err != nil {
			return "", err
		}
		return fmt.Sprintf("Pressed %s (%d)", step.Key, code), nil

	case scenario.ActionBack:
		if err := x.call(ctx, x.device.Back); err != nil {
			return "", err
		}
		return "Pressed back", nil

	case scenario.ActionLaunch:
		if err := x.call(ctx, x.device.Launch); err != nil {
			return "", err
		}
		return "Launched app", nil

	case scenario.ActionWait:
		select {
		case <-time.After(x.opts.WaitDuration):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return fmt.Sprintf("Waited %s", x.opts.WaitDuration), nil

	default:
		return "", fmt.Errorf("unsupported action %q", step.Action)
	}
}

func (x *Executor) tap(ctx context.Context, p core.Point) (string, error) {
	if err := x.call(ctx, func(ctx context.Context) error { return x.device.Tap(ctx, p.X, p.Y) }); err != nil {
		return "", err
	}
	return fmt.Sprintf("Tapped (%d,%d)", p.X, p.Y), nil
}

func (x *Executor) swipe(ctx context.Context, step *scenario.Step) (string, error) {
	dir := SwipeDirection(step.Action, step.Direction)

	w, h := fallbackWidth, fallbackHeight
	var sw, sh int
	err := x.call(ctx, func(ctx context.Context) error {
		var err error
		sw, sh, err = x.device.ScreenSize(ctx)
		return err
	})
	if err == nil && sw > 0 && sh > 0 {
		w, h = sw, sh
	} else if core.IsTransport(err) {
		return "", err
	}

	from, to := SwipeVector(dir, w, h)
	if err := x.call(ctx, func(ctx context.Context) error {
		return x.device.Swipe(ctx, from.X, from.Y, to.X, to.Y, x.opts.SwipeDuration)
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Swiped %s from (%d,%d) to (%d,%d)", dir, from.X, from.Y, to.X, to.Y), nil
}

// call runs fn under the per-action timeout.
func (x *Executor) call(ctx context.Context, fn func(context.Context) error) error {
	if x.opts.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opts.ActionTimeout)
		defer cancel()
	}
	return fn(ctx)
}
