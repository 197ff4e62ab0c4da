package utils

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	mentionKeys  = regexp.MustCompile(`@_user_\d+`)
	blankRuns    = regexp.MustCompile(`[ \t]{2,}`)
)

// SanitizeString removes control characters other than newline and tab
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// StripMentions removes @_user_N mention placeholders from message text
func StripMentions(s string) string {
	return blankRuns.ReplaceAllString(mentionKeys.ReplaceAllString(s, ""), " ")
}

// CleanMessageText prepares inbound chat text for matching and validation
func CleanMessageText(s string) string {
	return strings.TrimSpace(StripMentions(SanitizeString(s)))
}
