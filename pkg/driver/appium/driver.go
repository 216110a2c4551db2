package appium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Driver implements core.Device over an Appium session.
type Driver struct {
	client *Client
	appID  string
	log    *zap.Logger
}

var _ core.Device = (*Driver)(nil)

// Capabilities builds the W3C capabilities for cfg.
func Capabilities(cfg config.AppiumConfig) map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":             cfg.Platform,
		"appium:automationName":    cfg.AutomationName,
		"appium:deviceName":        cfg.DeviceName,
		"appium:noReset":           cfg.NoReset,
		"appium:newCommandTimeout": cfg.NewCommandTimeout,
	}
	if cfg.AppPackage != "" {
		caps["appium:appPackage"] = cfg.AppPackage
	}
	if cfg.AppActivity != "" {
		caps["appium:appActivity"] = cfg.AppActivity
	}
	return caps
}

// Connect opens a session on the server named by cfg.
func Connect(ctx context.Context, cfg config.AppiumConfig, log *zap.Logger) (*Driver, error) {
	client := NewClient(cfg.URL, cfg.RequestTimeout)
	if err := client.Connect(ctx, Capabilities(cfg)); err != nil {
		return nil, wrapErr("connect", err)
	}
	d := NewDriver(client, cfg.AppPackage, log)
	d.log.Info("appium session created",
		zap.String("session", client.SessionID()),
		zap.String("platform", client.Platform()))
	return d, nil
}

// NewDriver wraps an already connected client.
func NewDriver(client *Client, appID string, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{client: client, appID: appID, log: log.Named("appium")}
}

// Client exposes the underlying protocol client.
func (d *Driver) Client() *Client {
	return d.client
}

// Launch activates the application under test.
func (d *Driver) Launch(ctx context.Context) error {
	if d.appID == "" {
		return fmt.Errorf("launch: no app package configured")
	}
	return wrapErr("launch", d.client.LaunchApp(ctx, d.appID))
}

// Reset terminates and relaunches the application under test.
func (d *Driver) Reset(ctx context.Context) error {
	if d.appID == "" {
		return fmt.Errorf("reset: no app package configured")
	}
	if err := d.client.TerminateApp(ctx, d.appID); err != nil {
		d.log.Warn("terminate before relaunch failed", zap.Error(err))
	}
	return d.Launch(ctx)
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := d.client.Screenshot(ctx)
	return data, wrapErr("screenshot", err)
}

func (d *Driver) Hierarchy(ctx context.Context) (string, error) {
	src, err := d.client.Source(ctx)
	return src, wrapErr("source", err)
}

func (d *Driver) Tap(ctx context.Context, x, y int) error {
	return wrapErr("tap", d.client.Tap(ctx, x, y))
}

func (d *Driver) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	return wrapErr("swipe", d.client.Swipe(ctx, x1, y1, x2, y2, int(duration.Milliseconds())))
}

// TypeText sends text to target by resource id when possible, otherwise to
// the focused element.
func (d *Driver) TypeText(ctx context.Context, target *core.Element, text string) error {
	if target != nil && target.ResourceID != "" {
		strategy := "id"
		if d.client.Platform() == "ios" {
			strategy = "accessibility id"
		}
		id, err := d.client.FindElement(ctx, strategy, target.ResourceID)
		if err == nil {
			if err = d.client.SendElementKeys(ctx, id, text); err == nil {
				return nil
			}
		}
		if isTransport(err) {
			return wrapErr("type", err)
		}
		d.log.Debug("typing into focused element", zap.String("id", target.ResourceID), zap.Error(err))
	}
	return wrapErr("type", d.client.SendKeys(ctx, text))
}

func (d *Driver) PressKey(ctx context.Context, code int) error {
	return wrapErr("press key", d.client.PressKeyCode(ctx, code))
}

func (d *Driver) Back(ctx context.Context) error {
	return wrapErr("back", d.client.Back(ctx))
}

// ScreenSize returns the window size reported at session start, refreshing it
// when unknown.
func (d *Driver) ScreenSize(ctx context.Context) (int, int, error) {
	w, h := d.client.ScreenSize()
	if w == 0 || h == 0 {
		d.client.fetchScreenSize(ctx)
		w, h = d.client.ScreenSize()
	}
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("screen size unavailable")
	}
	return w, h, nil
}

// Close ends the Appium session.
func (d *Driver) Close(ctx context.Context) error {
	return wrapErr("disconnect", d.client.Disconnect(ctx))
}

func isTransport(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var wd *WebDriverError
	// A lost session is as fatal to the attempt as a lost connection.
	return errors.As(err, &wd) && wd.Code == "invalid session id"
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransport(err) {
		return core.NewTransportError("appium", fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("appium %s: %w", op, err)
}
