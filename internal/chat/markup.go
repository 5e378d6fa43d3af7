package chat

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	gifURLPattern = regexp.MustCompile(`(?i)(https?://\S+?\.gif)(\s|$)`)

	inlineRules = []struct {
		pattern *regexp.Regexp
		replace string
	}{
		{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>$1</strong>"},
		{regexp.MustCompile(`\*(.*?)\*`), "<em>$1</em>"},
		{regexp.MustCompile(`__(.*?)__`), "<u>$1</u>"},
		{regexp.MustCompile(`_(.*?)_`), "<i>$1</i>"},
	}

	renderPolicy = newRenderPolicy()
)

func newRenderPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong", "em", "u", "i", "br")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	return p
}

// Render turns model text into safe inline HTML: bare .gif URLs become
// images, **bold**, *italic*, __underline__ and _italic_ are translated,
// and newlines become <br>. Everything else is escaped.
func Render(text string) string {
	if text == "" {
		return ""
	}

	var out strings.Builder
	last := 0
	for _, m := range gifURLPattern.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(renderInline(text[last:m[2]]))
		url := text[m[2]:m[3]]
		out.WriteString(`<img src="` + html.EscapeString(url) + `" alt="GIF">`)
		last = m[3]
	}
	out.WriteString(renderInline(text[last:]))

	return renderPolicy.Sanitize(out.String())
}

// renderInline applies the inline rules to text that contains no image URL.
// URLs are cut out first so underscores inside them are left alone.
func renderInline(text string) string {
	s := html.EscapeString(text)
	for _, rule := range inlineRules {
		s = rule.pattern.ReplaceAllString(s, rule.replace)
	}
	return strings.ReplaceAll(s, "\n", "<br>")
}
