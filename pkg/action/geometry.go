package action

import (
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// FuzzyPoints returns up to n tap points inside box: the center, then one
// point in each quadrant inset by a quarter of the box.
func FuzzyPoints(box core.Bounds, n int) []core.Point {
	if n <= 0 {
		return nil
	}
	qx, qy := box.Width/4, box.Height/4
	pts := []core.Point{
		box.Center(),
		{X: box.X + qx, Y: box.Y + qy},
		{X: box.X + box.Width - qx, Y: box.Y + qy},
		{X: box.X + qx, Y: box.Y + box.Height - qy},
		{X: box.X + box.Width - qx, Y: box.Y + box.Height - qy},
	}
	return pts[:min(n, len(pts))]
}

// SwipeDirection returns the finger direction for an action. Scrolling moves
// the content, so scrolling down is a finger swipe up.
func SwipeDirection(kind scenario.ActionKind, direction string) string {
	if kind == scenario.ActionScroll {
		switch direction {
		case scenario.DirectionUp:
			return scenario.DirectionDown
		case scenario.DirectionLeft:
			return scenario.DirectionRight
		case scenario.DirectionRight:
			return scenario.DirectionLeft
		default:
			return scenario.DirectionUp
		}
	}
	if direction == "" {
		return scenario.DirectionUp
	}
	return direction
}

// SwipeVector returns start and end points of a finger swipe in direction on
// a w x h screen. Vertical swipes cover the middle half of the screen height.
func SwipeVector(direction string, w, h int) (from, to core.Point) {
	cx, cy := w/2, h/2
	switch direction {
	case scenario.DirectionDown:
		return core.Point{X: cx, Y: h / 4}, core.Point{X: cx, Y: h * 3 / 4}
	case scenario.DirectionLeft:
		return core.Point{X: w * 4 / 5, Y: cy}, core.Point{X: w / 5, Y: cy}
	case scenario.DirectionRight:
		return core.Point{X: w / 5, Y: cy}, core.Point{X: w * 4 / 5, Y: cy}
	default:
		return core.Point{X: cx, Y: h * 3 / 4}, core.Point{X: cx, Y: h / 4}
	}
}
