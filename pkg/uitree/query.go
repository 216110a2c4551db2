package uitree

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Texts returns every non-empty text and content description, in document order.
func Texts(t *core.Tree) []string {
	var out []string
	for _, e := range t.Visible() {
		if e.Text != "" {
			out = append(out, e.Text)
		}
		if e.ContentDesc != "" && e.ContentDesc != e.Text {
			out = append(out, e.ContentDesc)
		}
	}
	return out
}

// ContainsText reports whether any visible element's text, content
// description or hint contains needle (case-insensitive).
func ContainsText(t *core.Tree, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	return t.Find(func(e *core.Element) bool {
		if !e.Visible() {
			return false
		}
		return strings.Contains(strings.ToLower(e.Text), needle) ||
			strings.Contains(strings.ToLower(e.ContentDesc), needle) ||
			strings.Contains(strings.ToLower(e.HintText), needle)
	}) != nil
}

var countRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([km]\b)?`)

// ParseCount extracts a count such as "1,204", "12.5K" or "3M likes" from s.
func ParseCount(s string) (int, bool) {
	m := countRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num := m[1]
	mult := 1.0
	switch strings.ToLower(m[2]) {
	case "k":
		mult = 1e3
		num = strings.ReplaceAll(num, ",", ".")
	case "m":
		mult = 1e6
		num = strings.ReplaceAll(num, ",", ".")
	default:
		num = strings.NewReplacer(",", "", ".", "").Replace(num)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f * mult)), true
}

// CountNear returns the count shown by, or adjacent to, the element labelled
// keyword (for example the number under a like button). ok is false when no
// count can be associated with keyword.
func CountNear(t *core.Tree, keyword string) (int, bool) {
	keyword = strings.ToLower(keyword)
	for _, e := range t.Visible() {
		label := strings.ToLower(e.Text + " " + e.ContentDesc + " " + e.ResourceID)
		if !strings.Contains(label, keyword) {
			continue
		}
		// "Like, 1,204" style descriptions carry the count inline.
		for _, s := range []string{e.ContentDesc, e.Text} {
			if n, ok := ParseCount(s); ok {
				return n, true
			}
		}
		if n, ok := countInSubtree(e); ok {
			return n, true
		}
		if n, ok := countInSiblings(e); ok {
			return n, true
		}
	}
	return 0, false
}

func countInSubtree(e *core.Element) (int, bool) {
	for _, c := range e.Children {
		if n, ok := ParseCount(c.Text); ok && c.Visible() {
			return n, true
		}
		if n, ok := countInSubtree(c); ok {
			return n, true
		}
	}
	return 0, false
}

func countInSiblings(e *core.Element) (int, bool) {
	if e.Parent == nil {
		return 0, false
	}
	for _, sib := range e.Parent.Children {
		if sib == e || !sib.Visible() {
			continue
		}
		if n, ok := ParseCount(sib.Text); ok {
			return n, true
		}
	}
	return 0, false
}
