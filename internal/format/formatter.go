package format

import (
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const markdownExtensions = parser.NoIntraEmphasis |
	parser.Autolink |
	parser.Strikethrough |
	parser.FencedCode |
	parser.SpaceHeadings |
	parser.HardLineBreak

// Formatter turns reply text into link-enriched, sanitized HTML.
// A Formatter is safe for concurrent use.
type Formatter struct {
	links  *linker
	policy *bluemonday.Policy
}

// New builds a Formatter over the given link table. A nil table uses DefaultLinks.
func New(links LinkTable) *Formatter {
	if links == nil {
		links = DefaultLinks
	}
	return &Formatter{
		links:  newLinker(links),
		policy: newPolicy(),
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.RequireNoFollowOnFullyQualifiedLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// HTML renders an AI reply. The result has always been through the sanitizer,
// whatever the input contains.
func (f *Formatter) HTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	linked := f.links.apply(dedent(normalizeNewlines(text)))

	// parsers keep per-document state, so one per call
	p := parser.NewWithExtensions(markdownExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.FlagsNone})
	rendered := markdown.Render(p.Parse([]byte(linked)), renderer)

	return strings.TrimSpace(f.policy.Sanitize(string(rendered)))
}

// Plain renders user-authored text: escaped, with line breaks kept.
func (f *Formatter) Plain(text string) string {
	escaped := html.EscapeString(normalizeNewlines(text))
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// Sanitize runs arbitrary HTML through the widget policy.
func (f *Formatter) Sanitize(raw string) string {
	return f.policy.Sanitize(raw)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// dedent strips the indentation shared by every non-blank line, so a reply
// that arrives uniformly indented is not rendered as a code block.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= common {
			lines[i] = line[common:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
