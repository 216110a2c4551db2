package uitree

import (
	"testing"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

const androidFeed = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" package="com.example.feed" bounds="[0,0][1080,2340]" clickable="false" enabled="true" displayed="true">
    <android.widget.LinearLayout class="android.widget.LinearLayout" resource-id="com.example.feed:id/like_group" bounds="[960,1000][1060,1160]" clickable="true">
      <android.widget.ImageView class="android.widget.ImageView" resource-id="com.example.feed:id/like_icon" content-desc="Like" bounds="[970,1000][1050,1080]" clickable="false"/>
      <android.widget.TextView class="android.widget.TextView" resource-id="com.example.feed:id/like_count" text="1,204" bounds="[970,1090][1050,1150]"/>
    </android.widget.LinearLayout>
    <android.widget.TextView class="android.widget.TextView" text="Hidden" bounds="[0,0][10,10]" displayed="false"/>
  </android.widget.FrameLayout>
</hierarchy>`

const iosFeed = `<?xml version="1.0" encoding="UTF-8"?>
<AppiumAUT>
  <XCUIElementTypeApplication type="XCUIElementTypeApplication" name="Feed" x="0" y="0" width="390" height="844">
    <XCUIElementTypeButton type="XCUIElementTypeButton" name="like_button" label="Like" x="340" y="400" width="40" height="40" enabled="true" visible="true"/>
    <XCUIElementTypeStaticText type="XCUIElementTypeStaticText" label="1.2K" x="340" y="445" width="40" height="20" visible="true"/>
  </XCUIElementTypeApplication>
</AppiumAUT>`

func TestParse_Android(t *testing.T) {
	tree, platform, err := Parse(androidFeed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if platform != PlatformAndroid {
		t.Errorf("platform = %q, want android", platform)
	}
	if tree.Len() != 5 {
		t.Fatalf("len = %d, want 5", tree.Len())
	}
	if len(tree.Roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(tree.Roots))
	}

	icon := tree.Find(func(e *core.Element) bool { return e.ContentDesc == "Like" })
	if icon == nil {
		t.Fatal("like icon not found")
	}
	if icon.Bounds != core.BoundsFromCorners(970, 1000, 1050, 1080) {
		t.Errorf("bounds = %+v", icon.Bounds)
	}
	if icon.Depth != 2 {
		t.Errorf("depth = %d, want 2", icon.Depth)
	}
	if got := icon.ClickableAncestor(); got == nil || got.ShortID() != "like_group" {
		t.Errorf("ClickableAncestor() = %+v, want like_group", got)
	}
	if icon.Index >= tree.Elements[icon.Index+1].Index {
		t.Error("elements should be in document order")
	}

	hidden := tree.Find(func(e *core.Element) bool { return e.Text == "Hidden" })
	if hidden == nil || hidden.Visible() {
		t.Errorf("hidden element should parse but not be visible: %+v", hidden)
	}
}

func TestParse_IOS(t *testing.T) {
	tree, platform, err := Parse(iosFeed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if platform != PlatformIOS {
		t.Errorf("platform = %q, want ios", platform)
	}
	btn := tree.Find(func(e *core.Element) bool { return e.ResourceID == "like_button" })
	if btn == nil {
		t.Fatal("button not found")
	}
	if !btn.Clickable || btn.ContentDesc != "Like" {
		t.Errorf("button = %+v", btn)
	}
	if btn.Bounds.Center() != (core.Point{X: 360, Y: 420}) {
		t.Errorf("center = %+v", btn.Bounds.Center())
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, _, err := Parse("<hierarchy><node"); err == nil {
		t.Error("expected error for malformed XML")
	}
	if _, _, err := Parse(""); err == nil {
		t.Error("expected error for empty source")
	}
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		in   string
		want core.Bounds
	}{
		{"[0,0][1080,2340]", core.Bounds{Width: 1080, Height: 2340}},
		{"[100,200][140,240]", core.Bounds{X: 100, Y: 200, Width: 40, Height: 40}},
		{"garbage", core.Bounds{}},
		{"", core.Bounds{}},
	}
	for _, tt := range tests {
		if got := ParseBounds(tt.in); got != tt.want {
			t.Errorf("ParseBounds(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
