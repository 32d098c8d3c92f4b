// Package normalize converts recognized hOCR into a readable Markdown
// transcript. Paragraphs and line breaks follow the hOCR structure; word
// positions are discarded.
package normalize

import (
	"fmt"
	"html"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// MarkdownNormalizer converts hOCR to Markdown using html-to-markdown.
type MarkdownNormalizer struct{}

// New creates a MarkdownNormalizer.
func New() *MarkdownNormalizer {
	return &MarkdownNormalizer{}
}

// Normalize converts an hOCR document into Markdown.
func (n *MarkdownNormalizer) Normalize(hocr string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hocr))
	if err != nil {
		return "", fmt.Errorf("parsing hOCR: %w", err)
	}

	var b strings.Builder
	pars := doc.Find(".ocr_par")
	if pars.Length() > 0 {
		pars.Each(func(_ int, par *goquery.Selection) {
			writeParagraph(&b, lines(par.Find(".ocr_line")))
		})
	} else {
		// Some producers emit lines without paragraph wrappers.
		doc.Find(".ocr_line").Each(func(_ int, line *goquery.Selection) {
			writeParagraph(&b, lines(line))
		})
	}
	if b.Len() == 0 {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(b.String())
	if err != nil {
		return "", fmt.Errorf("converting hOCR to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// lines returns the text of each line in sel with words single-spaced.
func lines(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, line *goquery.Selection) {
		text := strings.Join(strings.Fields(line.Text()), " ")
		if text != "" {
			out = append(out, text)
		}
	})
	return out
}

func writeParagraph(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString("<p>")
	for i, l := range lines {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString(html.EscapeString(l))
	}
	b.WriteString("</p>\n")
}
