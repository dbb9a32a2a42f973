package conversation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
)

var (
	// explicit introductions accept any casing
	explicitNamePattern = regexp.MustCompile(`\b(?i:my name is|my name's|call me)\s+(\p{L}[\p{L}'-]*)`)
	// casual introductions only count when the name is capitalised
	casualNamePattern = regexp.MustCompile(`\b(?i:i am|i'm|this is)\s+(\p{Lu}[\p{L}'-]*)`)

	businessPattern = regexp.MustCompile(
		`\b(?i:i run|i own|i manage|we run|we own|my business is|my company is)\s+(?i:an?\s+)?` +
			`(\p{L}[\p{L} '&-]{0,40}?)` +
			`(?:\s+(?i:and|but|so|in|with|that|who|which|for)\b|\s*[.,!?;]|\s*$)`)

	notNames = map[string]bool{
		"here": true, "looking": true, "interested": true, "trying": true, "not": true,
		"just": true, "calling": true, "wondering": true, "a": true, "an": true, "the": true,
	}
)

// Extract pulls personalization fields out of free user text. Fields that
// are not mentioned stay empty.
func Extract(text string) profile.Profile {
	var p profile.Profile

	if m := explicitNamePattern.FindStringSubmatch(text); m != nil {
		p.Name = titleCase(m[1])
	} else if m := casualNamePattern.FindStringSubmatch(text); m != nil && !notNames[strings.ToLower(m[1])] {
		p.Name = m[1]
	}
	if p.Name != "" && notNames[strings.ToLower(p.Name)] {
		p.Name = ""
	}

	if m := businessPattern.FindStringSubmatch(text); m != nil {
		p.BusinessType = strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	}
	return p
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
