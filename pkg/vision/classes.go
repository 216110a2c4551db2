package vision

import (
	"regexp"
	"strings"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/textmatch"
)

// Classes are the labels the detector model was trained on.
var Classes = []string{
	"Following", "For you", "Friends", "comment", "comment_edit",
	"edit_profile", "home", "like", "name_edit", "profile",
	"save", "search", "send_comment", "share", "username_edit",
}

// intentClasses maps query keywords to detector classes, in match order.
var intentClasses = []struct {
	keyword string
	classes []string
}{
	{"comment", []string{"comment", "comment_edit"}},
	{"reply", []string{"comment", "comment_edit"}},
	{"type", []string{"comment_edit", "send_comment"}},
	{"submit", []string{"send_comment"}},
	{"write", []string{"comment_edit"}},
	{"send", []string{"send_comment", "share"}},
	{"post", []string{"send_comment"}},
	{"like", []string{"like"}},
	{"heart", []string{"like"}},
	{"share", []string{"share"}},
	{"message", []string{"inbox"}},
	{"inbox", []string{"inbox"}},
	{"chat", []string{"inbox"}},
	{"profile", []string{"profile"}},
	{"upload", []string{"upload"}},
	{"friends", []string{"friends"}},
	{"explore", []string{"explore"}},
	{"search", []string{"search"}},
	{"magnifying", []string{"search"}},
	{"home", []string{"home"}},
	{"following", []string{"following"}},
	{"for you", []string{"for you"}},
	{"shop", []string{"shop"}},
	{"store", []string{"shop"}},
}

var intentPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(intentClasses))
	for i, ic := range intentClasses {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(ic.keyword) + `\b`)
	}
	return out
}()

// textEntryHints widen a query to the editable-field classes.
var textEntryHints = []string{"type", "write", "input", "text"}

// fuzzyClassThreshold is the minimum partial-ratio score for the class fallback.
const fuzzyClassThreshold = 0.70

// TargetClasses returns the detector classes a query may refer to,
// deduplicated case-insensitively in first-seen order. An empty result means
// the detector cannot help.
func TargetClasses(query string) []string {
	q := strings.ToLower(query)
	var targets []string
	for i, ic := range intentClasses {
		if intentPatterns[i].MatchString(q) {
			targets = append(targets, ic.classes...)
		}
	}
	for _, h := range textEntryHints {
		if strings.Contains(q, h) {
			targets = append(targets, "comment_edit", "username_edit", "name_edit")
			break
		}
	}
	if len(targets) == 0 {
		targets = fuzzyClasses(q)
	}
	return dedupe(targets)
}

func fuzzyClasses(q string) []string {
	var out []string
	for _, c := range Classes {
		if textmatch.PartialRatio(q, strings.ToLower(c)) >= fuzzyClassThreshold {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		k := strings.ToLower(s)
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}
