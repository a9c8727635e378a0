package mail

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var multiBlank = regexp.MustCompile(`\n\n\n+`)

// HTMLToText converts an HTML email body to clean plain text: scripts,
// styles and images are dropped, block elements become line breaks.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, img").Remove()
	// Block-level boundaries turn into newlines so paragraphs survive.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	return CleanText(doc.Text()), nil
}

// CleanText normalizes line endings, trims each line and collapses runs of
// blank lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, strings.TrimSpace(line))
	}
	out := strings.Join(cleaned, "\n")
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
