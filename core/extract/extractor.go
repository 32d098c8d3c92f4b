// Package extract turns hOCR markup produced by the recognition engine into
// positioned word tokens. Word elements carry their geometry in the title
// attribute, e.g. title="bbox 36 92 108 120; x_wconf 91".
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/folioscan/core"
)

// wordSelectors match word-level elements across hOCR producers.
var wordSelectors = []string{".ocrx_word", ".ocr_word"}

// HOCRExtractor parses hOCR documents.
type HOCRExtractor struct {
	// MinConfidence drops words recognized below this confidence (0-100).
	MinConfidence float64
}

// New creates an HOCRExtractor that keeps every non-empty word.
func New() *HOCRExtractor {
	return &HOCRExtractor{}
}

// Extract returns the words of an hOCR document in reading order.
func (e *HOCRExtractor) Extract(hocr string) ([]core.OCRToken, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hocr))
	if err != nil {
		return nil, fmt.Errorf("parsing hOCR: %w", err)
	}

	var words *goquery.Selection
	for _, sel := range wordSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			words = found
			break
		}
	}
	if words == nil {
		return nil, nil
	}

	var tokens []core.OCRToken
	var parseErr error
	words.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		title, _ := s.Attr("title")
		props := parseTitle(title)
		box, ok := props["bbox"]
		if !ok {
			return true
		}
		coords, err := parseInts(box, 4)
		if err != nil {
			parseErr = fmt.Errorf("word %q: %w", text, err)
			return false
		}
		tok := core.OCRToken{
			Text:       text,
			Left:       coords[0],
			Top:        coords[1],
			Width:      coords[2] - coords[0],
			Height:     coords[3] - coords[1],
			Confidence: -1,
		}
		if conf, ok := props["x_wconf"]; ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(conf), 64); err == nil {
				tok.Confidence = v
			}
		}
		if tok.Width < 0 || tok.Height < 0 {
			return true
		}
		if e.MinConfidence > 0 && tok.Confidence >= 0 && tok.Confidence < e.MinConfidence {
			return true
		}
		tokens = append(tokens, tok)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return tokens, nil
}

// parseTitle splits an hOCR title attribute into its properties.
func parseTitle(title string) map[string]string {
	props := make(map[string]string)
	for _, part := range strings.Split(title, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, " ")
		props[key] = strings.TrimSpace(value)
	}
	return props
}

func parseInts(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("want %d values, got %q", n, s)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
