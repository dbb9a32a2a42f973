package format

import (
	"regexp"
	"sort"
	"strings"
)

// Brand destinations linked from receptionist replies.
const (
	GreatOwlURL = "https://greatowlmarketing.com"
	HootbotURL  = "https://m.me/593357600524046"
	PayNowURL   = "https://buy.stripe.com/fZu6oH2nU2j83PreF00x200"
	BookCallURL = "https://calendly.com/phineasjholdings-info/30min"
)

// DefaultLinks is the canonical phrase to destination table used by the widget.
var DefaultLinks = defaultLinks()

func defaultLinks() LinkTable {
	table := LinkTable{
		"Great Owl Marketing": GreatOwlURL,
		"Meet Hootbot":        HootbotURL,
		"Hootbot":             HootbotURL,
		"Pay Now":             PayNowURL,
	}
	// "Book a 30 minute call" and the spellings the receptionist actually uses
	for _, lead := range []string{"book a", "book"} {
		for _, length := range []string{
			"30 minute", "30-minute", "30minute",
			"30 min", "30-min", "30min",
			"thirty minute", "thirty-minute",
		} {
			table[lead+" "+length+" call"] = BookCallURL
		}
	}
	return table
}

// LinkTable maps a brand phrase to its destination URL.
type LinkTable map[string]string

// protectedSpan matches text the linker must leave alone: existing markdown
// links, inline code, raw tags and bare URLs.
var protectedSpan = regexp.MustCompile("\\[[^\\]]*\\]\\([^)]*\\)|`[^`]*`|</?[A-Za-z][^>]*>|<!--.*?-->|(?i:https?://|www\\.)[^\\s<]+")

type linker struct {
	pattern *regexp.Regexp
	targets map[string]string
}

func newLinker(table LinkTable) *linker {
	if len(table) == 0 {
		return &linker{}
	}

	phrases := make([]string, 0, len(table))
	targets := make(map[string]string, len(table))
	for phrase, url := range table {
		key := normalizePhrase(phrase)
		if key == "" || url == "" {
			continue
		}
		if _, dup := targets[key]; dup {
			continue
		}
		targets[key] = url
		phrases = append(phrases, key)
	}
	if len(phrases) == 0 {
		return &linker{}
	}

	// RE2 alternation is leftmost-first, so longer phrases must come first.
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	alternatives := make([]string, len(phrases))
	for i, phrase := range phrases {
		words := strings.Fields(phrase)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alternatives[i] = strings.Join(words, `\s+`)
	}

	return &linker{
		pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`),
		targets: targets,
	}
}

// apply rewrites every recognised phrase outside protected spans into a
// markdown link in a single pass.
func (l *linker) apply(text string) string {
	if l.pattern == nil || text == "" {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	last := 0
	for _, span := range protectedSpan.FindAllStringIndex(text, -1) {
		b.WriteString(l.link(text[last:span[0]]))
		b.WriteString(text[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(l.link(text[last:]))
	return b.String()
}

func (l *linker) link(segment string) string {
	if segment == "" {
		return segment
	}
	return l.pattern.ReplaceAllStringFunc(segment, func(match string) string {
		url, ok := l.targets[normalizePhrase(match)]
		if !ok {
			return match
		}
		return "[" + match + "](" + url + ")"
	})
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
