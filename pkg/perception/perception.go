// Package perception captures the UI state the step runner reasons about.
package perception

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/uitree"
)

// Adapter captures snapshots from a device.
type Adapter struct {
	device  core.Device
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// New creates an adapter. timeout bounds each device call; zero disables it.
func New(device core.Device, timeout time.Duration, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{device: device, timeout: timeout, log: log.Named("perception"), now: time.Now}
}

// Capture takes a screenshot and the UI hierarchy. A missing screenshot is
// tolerated (structural resolution still works); a missing hierarchy is not.
func (a *Adapter) Capture(ctx context.Context) (*core.Snapshot, error) {
	w, h, err := a.screenSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen size: %w", err)
	}

	source, err := callWithTimeout(ctx, a.timeout, a.device.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	tree, _, err := uitree.Parse(source)
	if err != nil {
		return nil, err
	}

	shot, err := callWithTimeout(ctx, a.timeout, a.device.Screenshot)
	if err != nil {
		if core.IsTransport(err) {
			return nil, fmt.Errorf("screenshot: %w", err)
		}
		a.log.Warn("screenshot unavailable", zap.Error(err))
	}

	snap := &core.Snapshot{
		Screenshot: shot,
		Tree:       tree,
		Width:      w,
		Height:     h,
		CapturedAt: a.now(),
	}
	a.log.Debug("captured snapshot", zap.Int("elements", tree.Len()), zap.Int("screenshot_bytes", len(shot)))
	return snap, nil
}

func (a *Adapter) screenSize(ctx context.Context) (int, int, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.device.ScreenSize(ctx)
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
