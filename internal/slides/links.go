package slides

import (
	"fmt"
	"regexp"
	"strings"
)

// presentationIDPattern matches the ID segment of a Google Slides URL.
var presentationIDPattern = regexp.MustCompile(`/presentation/d/([a-zA-Z0-9_-]+)`)

// idOnlyPattern matches a bare presentation ID.
var idOnlyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)

// ParsePresentationID extracts the presentation ID from a Google
// Slides URL, or accepts a bare ID. Returns an empty string when the
// input cannot be parsed.
func ParsePresentationID(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if m := presentationIDPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}

	if idOnlyPattern.MatchString(input) {
		return input
	}

	return ""
}

// EditLink returns the canonical edit URL for a presentation.
func EditLink(presentationID string) string {
	return fmt.Sprintf("https://docs.google.com/presentation/d/%s/edit", presentationID)
}

// EmbedURL returns the embeddable viewer URL for a presentation,
// opened at the given 1-based slide number.
func EmbedURL(presentationID string, slideNumber int) string {
	if slideNumber < 1 {
		slideNumber = 1
	}
	return fmt.Sprintf(
		"https://docs.google.com/presentation/d/%s/embed?start=false&loop=false&delayms=3000&slide=id.p%d",
		presentationID, slideNumber,
	)
}
