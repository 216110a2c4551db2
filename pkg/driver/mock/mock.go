// Package mock provides a scriptable device for testing without a real device.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Call records one device operation.
type Call struct {
	Op   string // launch, screenshot, hierarchy, tap, swipe, type, key, back
	X, Y int
	X2   int
	Y2   int
	Text string
	Code int
}

// Transition returns the next screen after call, or "" to keep the current one.
type Transition func(call Call, screen string) string

// Config configures mock device behavior.
type Config struct {
	Width  int
	Height int
	// StepDelay adds artificial delay per action
	StepDelay time.Duration
}

// Device is a mock implementation of core.Device. The current screen is a
// page-source XML string; actions are logged and may move to another screen
// through a Transition.
type Device struct {
	mu         sync.Mutex
	cfg        Config
	screen     string
	transition Transition
	failures   map[string]error
	calls      []Call
	shot       []byte
}

var _ core.Device = (*Device)(nil)

// New creates a mock device showing screen.
func New(cfg Config, screen string) *Device {
	if cfg.Width == 0 {
		cfg.Width = 1080
	}
	if cfg.Height == 0 {
		cfg.Height = 2340
	}
	return &Device{
		cfg:      cfg,
		screen:   screen,
		failures: make(map[string]error),
		shot:     PlaceholderPNG(cfg.Width/10, cfg.Height/10),
	}
}

// SetScreen replaces the current screen.
func (d *Device) SetScreen(screen string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screen = screen
}

// Screen returns the current screen.
func (d *Device) Screen() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen
}

// OnAction installs the screen transition function.
func (d *Device) OnAction(t Transition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transition = t
}

// Fail makes every call to op return err until cleared with Fail(op, nil).
func (d *Device) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// FailTransport makes op fail as if the automation server were unreachable.
func (d *Device) FailTransport(op string) {
	d.Fail(op, core.NewTransportError("mock", fmt.Errorf("%s: connection refused", op)))
}

// Calls returns a copy of the call log.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsOf returns the logged calls of one operation.
func (d *Device) CallsOf(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Taps returns the coordinates of every tap, in order.
func (d *Device) Taps() []core.Point {
	var out []core.Point
	for _, c := range d.CallsOf("tap") {
		out = append(out, core.Point{X: c.X, Y: c.Y})
	}
	return out
}

func (d *Device) record(ctx context.Context, c Call) error {
	if err := ctx.Err(); err != nil {
		return core.NewTransportError("mock", err)
	}
	if d.cfg.StepDelay > 0 && c.Op != "screenshot" && c.Op != "hierarchy" {
		time.Sleep(d.cfg.StepDelay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if err := d.failures[c.Op]; err != nil {
		return err
	}
	if d.transition != nil && c.Op != "screenshot" && c.Op != "hierarchy" {
		if next := d.transition(c, d.screen); next != "" {
			d.screen = next
		}
	}
	return nil
}

func (d *Device) Launch(ctx context.Context) error {
	return d.record(ctx, Call{Op: "launch"})
}

func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.record(ctx, Call{Op: "screenshot"}); err != nil {
		return nil, err
	}
	return d.shot, nil
}

func (d *Device) Hierarchy(ctx context.Context) (string, error) {
	if err := d.record(ctx, Call{Op: "hierarchy"}); err != nil {
		return "", err
	}
	return d.Screen(), nil
}

func (d *Device) Tap(ctx context.Context, x, y int) error {
	return d.record(ctx, Call{Op: "tap", X: x, Y: y})
}

func (d *Device) Swipe(ctx context.Context, x1, y1, x2, y2 int, _ time.Duration) error {
	return d.record(ctx, Call{Op: "swipe", X: x1, Y: y1, X2: x2, Y2: y2})
}

func (d *Device) TypeText(ctx context.Context, target *core.Element, text string) error {
	c := Call{Op: "type", Text: text}
	if target != nil {
		p := target.Bounds.Center()
		c.X, c.Y = p.X, p.Y
	}
	return d.record(ctx, c)
}

func (d *Device) PressKey(ctx context.Context, code int) error {
	return d.record(ctx, Call{Op: "key", Code: code})
}

func (d *Device) Back(ctx context.Context) error {
	return d.record(ctx, Call{Op: "back"})
}

func (d *Device) ScreenSize(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures["size"]; err != nil {
		return 0, 0, err
	}
	return d.cfg.Width, d.cfg.Height, nil
}

// Reset relaunches the app; it is logged as "reset".
func (d *Device) Reset(ctx context.Context) error {
	return d.record(ctx, Call{Op: "reset"})
}

// PlaceholderPNG encodes a flat grey image of the given size.
func PlaceholderPNG(w, h int) []byte {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: 0x80}.Y
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
