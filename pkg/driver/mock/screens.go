package mock

import (
	"fmt"
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Screen fixtures in UiAutomator2 page-source format. The feed screen places
// the like button at [100,200][140,240].

const feedPackage = "com.example.feed"

// Node renders one hierarchy node. attrs are rendered in order.
func Node(class string, attrs ...string) string {
	var sb strings.Builder
	sb.WriteString("<" + class + ` class="` + class + `"`)
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&sb, ` %s="%s"`, attrs[i], xmlEscape(attrs[i+1]))
	}
	sb.WriteString("/>")
	return sb.String()
}

// Group renders a node with children.
func Group(class string, attrs []string, children ...string) string {
	open := strings.TrimSuffix(Node(class, attrs...), "/>") + ">"
	return open + strings.Join(children, "") + "</" + class + ">"
}

// Hierarchy wraps top-level nodes into a page source document.
func Hierarchy(nodes ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><hierarchy rotation="0">` +
		Group("android.widget.FrameLayout", []string{"package", feedPackage, "bounds", "[0,0][1080,2340]"}, nodes...) +
		"</hierarchy>"
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

func feedNodes(likes int, liked bool) []string {
	likedAttr := "false"
	if liked {
		likedAttr = "true"
	}
	return []string{
		Node("android.widget.TextView", "text", "For You", "resource-id", feedPackage+":id/tab_for_you",
			"clickable", "true", "bounds", "[400,80][600,140]"),
		Node("android.widget.TextView", "text", "Like", "resource-id", feedPackage+":id/like_button",
			"clickable", "true", "selected", likedAttr, "bounds", "[100,200][140,240]"),
		Node("android.widget.TextView", "text", fmt.Sprint(likes), "resource-id", feedPackage+":id/like_count",
			"bounds", "[100,245][140,265]"),
		Node("android.widget.ImageView", "content-desc", "Comment", "resource-id", feedPackage+":id/comment_button",
			"clickable", "true", "bounds", "[100,300][140,340]"),
		Node("android.widget.TextView", "text", "87", "resource-id", feedPackage+":id/comment_count",
			"bounds", "[100,345][140,365]"),
		Node("android.widget.ImageView", "content-desc", "Share", "resource-id", feedPackage+":id/share_button",
			"clickable", "true", "bounds", "[100,400][140,440]"),
		Node("android.widget.TextView", "text", "@creator", "resource-id", feedPackage+":id/author",
			"bounds", "[40,2000][400,2050]"),
		Node("android.widget.ImageView", "content-desc", "Profile", "resource-id", feedPackage+":id/nav_profile",
			"clickable", "true", "bounds", "[900,2200][1060,2340]"),
	}
}

// FeedScreen is the video feed with the given like count.
func FeedScreen(likes int) string {
	return Hierarchy(feedNodes(likes, false)...)
}

// LikedFeedScreen is the feed after the like button was toggled on.
func LikedFeedScreen(likes int) string {
	return Hierarchy(feedNodes(likes, true)...)
}

// CommentSheetScreen is the feed with the comment panel open.
func CommentSheetScreen(likes int) string {
	nodes := append(feedNodes(likes, false),
		Group("android.widget.LinearLayout",
			[]string{"resource-id", feedPackage + ":id/comment_sheet", "bounds", "[0,1200][1080,2340]"},
			Node("android.widget.TextView", "text", "87 comments", "bounds", "[40,1220][600,1280]"),
			Node("android.widget.EditText", "hint", "Add a comment...", "resource-id", feedPackage+":id/comment_input",
				"clickable", "true", "focusable", "true", "bounds", "[40,2200][900,2300]"),
			Node("android.widget.ImageView", "content-desc", "Send", "resource-id", feedPackage+":id/send_comment",
				"clickable", "true", "bounds", "[920,2200][1060,2300]"),
		))
	return Hierarchy(nodes...)
}

// PermissionScreen is the feed under a system runtime-permission prompt.
func PermissionScreen(likes int) string {
	const pkg = "com.android.permissioncontroller"
	dialog := Group("android.widget.LinearLayout",
		[]string{"package", pkg, "resource-id", pkg + ":id/grant_dialog", "bounds", "[60,900][1020,1700]"},
		Node("android.widget.TextView", "package", pkg, "text", "Allow Feed to record audio?",
			"resource-id", pkg+":id/permission_message", "bounds", "[120,950][960,1100]"),
		Node("android.widget.Button", "package", pkg, "text", "While using the app",
			"resource-id", pkg+":id/permission_allow_foreground_only_button", "clickable", "true", "bounds", "[120,1200][960,1300]"),
		Node("android.widget.Button", "package", pkg, "text", "Only this time",
			"resource-id", pkg+":id/permission_allow_one_time_button", "clickable", "true", "bounds", "[120,1320][960,1420]"),
		Node("android.widget.Button", "package", pkg, "text", "Don't allow",
			"resource-id", pkg+":id/permission_deny_button", "clickable", "true", "bounds", "[120,1440][960,1540]"),
	)
	return Hierarchy(append(feedNodes(likes, true), dialog)...)
}

// AdScreen is the feed covered by a full-screen interstitial ad.
func AdScreen(likes int) string {
	ad := Group("android.widget.FrameLayout",
		[]string{"resource-id", feedPackage + ":id/ad_interstitial", "bounds", "[0,0][1080,2340]"},
		Node("android.widget.TextView", "text", "Sponsored", "bounds", "[40,60][300,120]"),
		Node("android.widget.TextView", "text", "Try Premium free for 30 days", "bounds", "[80,1000][1000,1100]"),
		Node("android.widget.ImageButton", "content-desc", "Close ad", "resource-id", feedPackage+":id/ad_close",
			"clickable", "true", "bounds", "[980,40][1060,120]"),
	)
	return Hierarchy(append(feedNodes(likes, false), ad)...)
}

// LoginWallScreen is a sign-in sheet over the feed.
func LoginWallScreen(likes int) string {
	sheet := Group("android.widget.LinearLayout",
		[]string{"resource-id", feedPackage + ":id/login_sheet", "bounds", "[0,700][1080,2340]"},
		Node("android.widget.TextView", "text", "Log in to Feed", "bounds", "[80,760][1000,860]"),
		Node("android.widget.Button", "text", "Continue with Google", "clickable", "true", "bounds", "[80,1000][1000,1100]"),
		Node("android.widget.Button", "text", "Use phone or email", "clickable", "true", "bounds", "[80,1120][1000,1220]"),
		Node("android.widget.TextView", "text", "Not now", "clickable", "true", "bounds", "[400,1400][680,1480]"),
	)
	return Hierarchy(append(feedNodes(likes, false), sheet)...)
}

// DialogScreen is a generic alert dialog over the feed.
func DialogScreen(likes int) string {
	dialog := Group("android.widget.FrameLayout",
		[]string{"resource-id", "android:id/parentPanel", "bounds", "[80,900][1000,1500]"},
		Node("android.widget.TextView", "text", "Rate this app", "resource-id", "android:id/alertTitle", "bounds", "[120,940][960,1020]"),
		Node("android.widget.TextView", "text", "Enjoying Feed? Tell us what you think.", "resource-id", "android:id/message", "bounds", "[120,1040][960,1200]"),
		Node("android.widget.Button", "text", "Later", "resource-id", "android:id/button2", "clickable", "true", "bounds", "[500,1380][720,1460]"),
		Node("android.widget.Button", "text", "Rate", "resource-id", "android:id/button1", "clickable", "true", "bounds", "[740,1380][960,1460]"),
	)
	return Hierarchy(append(feedNodes(likes, false), dialog)...)
}

// BlockingScreen is an unclassified overlay with no dismiss affordance.
func BlockingScreen() string {
	return Hierarchy(
		Node("android.widget.FrameLayout", "resource-id", "com.vendor.overlay:id/blocker", "package", "com.vendor.overlay",
			"bounds", "[0,0][1080,2340]", "clickable", "true"),
	)
}

// LikeCounter returns a transition to LikedFeedScreen with one more like
// each time the like button of the feed is tapped.
func LikeCounter(likes int) Transition {
	button := core.BoundsFromCorners(100, 200, 140, 240)
	return func(c Call, _ string) string {
		if c.Op == "tap" && button.Contains(core.Point{X: c.X, Y: c.Y}) {
			likes++
			return LikedFeedScreen(likes)
		}
		return ""
	}
}
