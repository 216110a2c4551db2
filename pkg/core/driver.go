// Package core provides the execution model shared by the step runner and its collaborators.
package core

import (
	"context"
	"time"
)

// Device is the device-automation collaborator the step runner drives.
// Every call is a network round trip to the automation server and fails
// with an error wrapping ErrTransport when the server cannot be reached.
type Device interface {
	// Launch brings the application under test to the foreground.
	Launch(ctx context.Context) error

	// Screenshot captures the current screen as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Hierarchy captures the raw UI hierarchy XML.
	Hierarchy(ctx context.Context) (string, error)

	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error

	// TypeText types into target when it can be addressed, otherwise into the focused element.
	TypeText(ctx context.Context, target *Element, text string) error

	PressKey(ctx context.Context, code int) error
	Back(ctx context.Context) error

	// ScreenSize returns the logical screen size in pixels.
	ScreenSize(ctx context.Context) (width, height int, err error)
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundsFromCorners builds Bounds from top-left and bottom-right corners.
func BoundsFromCorners(x1, y1, x2, y2 int) Bounds {
	return Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.Width && p.Y >= b.Y && p.Y < b.Y+b.Height
}

// Area returns width*height, or 0 for degenerate bounds.
func (b Bounds) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Empty reports whether the bounds cover no pixels.
func (b Bounds) Empty() bool {
	return b.Area() == 0
}

// Intersect returns the overlapping region of b and o.
func (b Bounds) Intersect(o Bounds) Bounds {
	x1, y1 := max(b.X, o.X), max(b.Y, o.Y)
	x2, y2 := min(b.X+b.Width, o.X+o.Width), min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Bounds{}
	}
	return BoundsFromCorners(x1, y1, x2, y2)
}

// Snapshot is the perceived UI state captured at the start of an attempt.
// A snapshot is never mutated; the next attempt captures a new one.
type Snapshot struct {
	Screenshot []byte    `json:"-"`
	Tree       *Tree     `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Screen returns the full-screen bounds of the snapshot.
func (s *Snapshot) Screen() Bounds {
	return Bounds{Width: s.Width, Height: s.Height}
}
