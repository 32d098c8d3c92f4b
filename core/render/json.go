// Package render: word index.
// Builds a JSON sidecar listing every recognized word with its position in
// image pixels and in PDF page space, so downstream tools can search or
// highlight without re-running recognition.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gaurav-prasanna/folioscan/core"
)

// WordIndex accumulates recognized words per page.
type WordIndex struct {
	Document string          `json:"document"`
	Pages    []WordIndexPage `json:"pages"`
}

// WordIndexPage is the recognized content of one page.
type WordIndexPage struct {
	Index   int         `json:"index"`
	Variant string      `json:"variant"`
	Width   float64     `json:"width_pt"`
	Height  float64     `json:"height_pt"`
	Text    string      `json:"text"`
	Words   []IndexWord `json:"words"`
}

// IndexWord is one word. X and Y are the text anchor in points from the
// bottom-left corner of the page.
type IndexWord struct {
	Text       string  `json:"text"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// NewWordIndex creates an empty index for document.
func NewWordIndex(document string) *WordIndex {
	return &WordIndex{Document: document}
}

// Add records the tokens drawn on canvas c for page index.
func (w *WordIndex) Add(index int, variant core.Variant, c Canvas, tokens []core.OCRToken) {
	page := WordIndexPage{
		Index:   index,
		Variant: variant.String(),
		Width:   c.PageW,
		Height:  c.PageH,
		Words:   make([]IndexWord, 0, len(tokens)),
	}
	texts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		x, y := c.TextAnchor(tok)
		page.Words = append(page.Words, IndexWord{
			Text:       tok.Text,
			Left:       tok.Left,
			Top:        tok.Top,
			Width:      tok.Width,
			Height:     tok.Height,
			Confidence: tok.Confidence,
			X:          x,
			Y:          y,
		})
		texts = append(texts, tok.Text)
	}
	page.Text = strings.Join(texts, " ")
	w.Pages = append(w.Pages, page)
}

// Render returns the index as indented JSON.
func (w *WordIndex) Render() ([]byte, error) {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling word index: %w", err)
	}
	return data, nil
}

// Extension returns the file extension for the word index.
func (w *WordIndex) Extension() string {
	return ".words.json"
}
