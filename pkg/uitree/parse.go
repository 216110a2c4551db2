// Package uitree parses Appium page source into a core.Tree.
package uitree

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Platform names returned by Parse.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

var boundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// Parse parses page source XML. iOS and Android hierarchies are detected
// automatically.
func Parse(xmlData string) (*core.Tree, string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlData); err != nil {
		return nil, "", fmt.Errorf("parse page source: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, "", fmt.Errorf("parse page source: no root element")
	}

	platform := PlatformAndroid
	if strings.Contains(xmlData, "XCUIElementType") || root.Tag == "AppiumAUT" {
		platform = PlatformIOS
	}

	tree := &core.Tree{Raw: xmlData}
	starts := []*etree.Element{root}
	if root.Tag == "hierarchy" || root.Tag == "AppiumAUT" {
		starts = root.ChildElements()
	}
	for _, el := range starts {
		tree.Roots = append(tree.Roots, build(tree, el, nil, 0, platform))
	}
	return tree, platform, nil
}

// MustParse parses xmlData and panics on error. Intended for tests and fixtures.
func MustParse(xmlData string) *core.Tree {
	t, _, err := Parse(xmlData)
	if err != nil {
		panic(err)
	}
	return t
}

func build(tree *core.Tree, el *etree.Element, parent *core.Element, depth int, platform string) *core.Element {
	e := &core.Element{
		Index:  len(tree.Elements),
		Depth:  depth,
		Parent: parent,
	}
	if platform == PlatformIOS {
		fillIOS(e, el)
	} else {
		fillAndroid(e, el)
	}
	tree.Elements = append(tree.Elements, e)

	for _, child := range el.ChildElements() {
		e.Children = append(e.Children, build(tree, child, e, depth+1, platform))
	}
	return e
}

func fillAndroid(e *core.Element, el *etree.Element) {
	e.Class = el.SelectAttrValue("class", el.Tag)
	e.Text = el.SelectAttrValue("text", "")
	e.ResourceID = el.SelectAttrValue("resource-id", "")
	e.ContentDesc = el.SelectAttrValue("content-desc", "")
	e.HintText = el.SelectAttrValue("hint", "")
	e.Package = el.SelectAttrValue("package", "")
	e.Bounds = ParseBounds(el.SelectAttrValue("bounds", ""))
	e.Clickable = el.SelectAttrValue("clickable", "false") == "true"
	e.Enabled = el.SelectAttrValue("enabled", "true") == "true"
	e.Displayed = el.SelectAttrValue("displayed", "true") != "false"
	e.Checked = el.SelectAttrValue("checked", "false") == "true"
	e.Selected = el.SelectAttrValue("selected", "false") == "true"
	e.Focused = el.SelectAttrValue("focused", "false") == "true"
}

func fillIOS(e *core.Element, el *etree.Element) {
	e.Class = el.SelectAttrValue("type", el.Tag)
	e.ResourceID = el.SelectAttrValue("name", "")
	e.ContentDesc = el.SelectAttrValue("label", "")
	e.Text = el.SelectAttrValue("value", "")
	if e.Text == "" && strings.HasSuffix(e.Class, "StaticText") {
		e.Text = e.ContentDesc
	}
	e.HintText = el.SelectAttrValue("placeholderValue", "")
	x := atoi(el.SelectAttrValue("x", "0"))
	y := atoi(el.SelectAttrValue("y", "0"))
	w := atoi(el.SelectAttrValue("width", "0"))
	h := atoi(el.SelectAttrValue("height", "0"))
	e.Bounds = core.Bounds{X: x, Y: y, Width: w, Height: h}
	e.Enabled = el.SelectAttrValue("enabled", "true") == "true"
	e.Displayed = el.SelectAttrValue("visible", "true") == "true"
	e.Selected = el.SelectAttrValue("selected", "false") == "true"
	e.Focused = el.SelectAttrValue("focused", "false") == "true"
	switch {
	case strings.HasSuffix(e.Class, "Button"), strings.HasSuffix(e.Class, "Cell"),
		strings.HasSuffix(e.Class, "Link"), strings.HasSuffix(e.Class, "TextField"),
		strings.HasSuffix(e.Class, "Switch"), strings.HasSuffix(e.Class, "Tab"):
		e.Clickable = true
	}
}

// ParseBounds parses Android bounds "[x1,y1][x2,y2]".
func ParseBounds(s string) core.Bounds {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return core.Bounds{}
	}
	return core.BoundsFromCorners(atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]))
}

func atoi(s string) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
