package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetClasses(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Tap the like button", []string{"like"}},
		{"Tap the heart icon", []string{"like"}},
		{"Open the comment panel", []string{"comment", "comment_edit"}},
		{"Send the comment", []string{"comment", "comment_edit", "send_comment", "share"}},
		{"Type a comment", []string{"comment", "comment_edit", "send_comment", "username_edit", "name_edit"}},
		{"Go to the For You feed", []string{"for you"}},
		{"Open the store", []string{"shop"}},
		{"text field", []string{"comment_edit", "username_edit", "name_edit"}},
		{"Profle", []string{"edit_profile", "profile"}},
		{"zzzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetClasses(tt.query))
		})
	}
}

func TestTargetClasses_WordBoundaries(t *testing.T) {
	// "likes" is not the keyword "like"; the fuzzy fallback still maps it.
	assert.Equal(t, []string{"like"}, TargetClasses("likes"))
	assert.NotContains(t, TargetClasses("unlikely posts"), "comment")
}
