package notices

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlCleaner   = bluemonday.StrictPolicy()
	htmlSanitizer = newSanitizePolicy()
	textConverter = newTextConverter()

	regexpColor = regexp.MustCompile(`(?i)^#([0-9a-f]{3,4}|[0-9a-f]{6}|[0-9a-f]{8})$`)
)

// newSanitizePolicy builds the sanitization policy for notice bodies.
// Operators embed markup in their feeds; everything but basic block
// structure and text decoration is stripped.
func newSanitizePolicy() (p *bluemonday.Policy) {
	p = bluemonday.NewPolicy()
	p.AllowElements(
		"p",
		"span",
		"blockquote",
		"h1",
		"h2",
		"h3",
		"h4",
		"h5",
		"br",
		"hr",
	)

	// Allow lists + 'start' attributes on ordered lists
	p.AllowLists()
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")

	// Allow text decorations
	p.AllowElements(
		"strong",
		"em",
		"s",
	)

	// Allow very specific styling:
	// color on spans and some text-decorations
	p.AllowStyles("color").Matching(regexpColor).OnElements("span")
	p.AllowStyles("text-decoration").MatchingEnum("underline").OnElements("span")

	return
}

// newTextConverter creates a markdown converter from **sanitized**
// html to a kinda-plaintext string.
func newTextConverter() (conv *md.Converter) {
	conv = md.NewConverter("", true, &md.Options{HeadingStyle: "setext"})

	// Strikethrough text should be deleted
	conv.Remove("s")

	conv.AddRules(
		// Text decorations should be ignored
		md.Rule{
			Filter: []string{"strong", "em", "span"},
			Replacement: func(content string, selec *goquery.Selection, options *md.Options) *string {
				return &content
			},
		},

		// Blockquotes should be indented
		md.Rule{
			Filter: []string{"blockquote"},
			Replacement: func(content string, selec *goquery.Selection, options *md.Options) *string {
				var newContent string
				for _, line := range strings.Split(content, "\n") {
					newContent += "  " + line
				}
				return &newContent
			},
		},
	)
	return
}

// plainText renders a notice body for display: sanitize first, then
// flatten the surviving markup to text.
func plainText(html string) string {
	sanitized := htmlSanitizer.Sanitize(html)
	text, err := textConverter.ConvertString(sanitized)
	if err != nil {
		text = htmlCleaner.Sanitize(html)
	}
	return strings.Trim(text, "\n\t ")
}

// inlineText strips all markup, for titles and one-line fields.
func inlineText(html string) string {
	return strings.TrimSpace(htmlCleaner.Sanitize(html))
}
