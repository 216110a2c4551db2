package core

import "strings"

// Element is a node of the structural UI tree.
type Element struct {
	Index       int    `json:"index"` // document order
	ResourceID  string `json:"resourceId,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentDesc string `json:"contentDesc,omitempty"`
	HintText    string `json:"hintText,omitempty"`
	Class       string `json:"class,omitempty"`
	Package     string `json:"package,omitempty"`
	Bounds      Bounds `json:"bounds"`
	Clickable   bool   `json:"clickable"`
	Enabled     bool   `json:"enabled"`
	Displayed   bool   `json:"displayed"`
	Checked     bool   `json:"checked,omitempty"`
	Selected    bool   `json:"selected,omitempty"`
	Focused     bool   `json:"focused,omitempty"`
	Depth       int    `json:"depth"`

	Parent   *Element   `json:"-"`
	Children []*Element `json:"-"`
}

// Label returns the most descriptive human-readable label of the element.
func (e *Element) Label() string {
	switch {
	case e.Text != "":
		return e.Text
	case e.ContentDesc != "":
		return e.ContentDesc
	case e.HintText != "":
		return e.HintText
	default:
		return e.ResourceID
	}
}

// ShortID returns the resource id with any "package:id/" prefix removed.
func (e *Element) ShortID() string {
	if i := strings.Index(e.ResourceID, ":id/"); i >= 0 {
		return e.ResourceID[i+len(":id/"):]
	}
	return e.ResourceID
}

// Visible reports whether the element is displayed with a non-empty box.
func (e *Element) Visible() bool {
	return e.Displayed && !e.Bounds.Empty()
}

// ClickableAncestor returns the element itself or its nearest clickable ancestor.
func (e *Element) ClickableAncestor() *Element {
	for cur := e; cur != nil; cur = cur.Parent {
		if cur.Clickable {
			return cur
		}
	}
	return nil
}

// Tree is a parsed UI hierarchy.
type Tree struct {
	Roots    []*Element `json:"-"`
	Elements []*Element `json:"elements"` // flattened, document order
	Raw      string     `json:"-"`
}

// Len returns the number of elements in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Elements)
}

// Screen returns the bounds of the first root that has any, which for a full
// hierarchy dump is the display. It is empty when no root carries bounds.
func (t *Tree) Screen() Bounds {
	if t == nil {
		return Bounds{}
	}
	for _, r := range t.Roots {
		if !r.Bounds.Empty() {
			return r.Bounds
		}
	}
	return Bounds{}
}

// OnScreen returns the part of b inside the screen, or b when the screen is
// unknown.
func (t *Tree) OnScreen(b Bounds) Bounds {
	screen := t.Screen()
	if screen.Empty() {
		return b
	}
	return b.Intersect(screen)
}

// Visible returns the displayed elements in document order.
func (t *Tree) Visible() []*Element {
	if t == nil {
		return nil
	}
	out := make([]*Element, 0, len(t.Elements))
	for _, e := range t.Elements {
		if e.Visible() {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first element matching fn.
func (t *Tree) Find(fn func(*Element) bool) *Element {
	if t == nil {
		return nil
	}
	for _, e := range t.Elements {
		if fn(e) {
			return e
		}
	}
	return nil
}

// Filter returns every element matching fn.
func (t *Tree) Filter(fn func(*Element) bool) []*Element {
	if t == nil {
		return nil
	}
	var out []*Element
	for _, e := range t.Elements {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}

// SmallestClickableAt returns the smallest visible clickable element containing p.
func (t *Tree) SmallestClickableAt(p Point) *Element {
	var best *Element
	for _, e := range t.Visible() {
		if !e.Clickable || !e.Bounds.Contains(p) {
			continue
		}
		if best == nil || e.Bounds.Area() < best.Bounds.Area() {
			best = e
		}
	}
	return best
}

// Signature is a compact textual fingerprint used to detect UI changes.
func (t *Tree) Signature() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, e := range t.Visible() {
		sb.WriteString(e.Class)
		sb.WriteByte('|')
		sb.WriteString(e.ResourceID)
		sb.WriteByte('|')
		sb.WriteString(e.Text)
		sb.WriteByte('|')
		sb.WriteString(e.ContentDesc)
		if e.Checked || e.Selected {
			sb.WriteString("|on")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
