// Package render: Markdown transcript.
// Collects the per-page Markdown produced from recognized text into one
// document with a heading per page.
package render

import (
	"fmt"
	"strings"
)

// Transcript is the recognized text of a compiled document.
type Transcript struct {
	Title string
	pages []transcriptPage
}

type transcriptPage struct {
	index    int
	markdown string
}

// NewTranscript creates an empty Transcript.
func NewTranscript(title string) *Transcript {
	return &Transcript{Title: title}
}

// Add records the Markdown of one page. Pages are rendered in the order
// they are added.
func (t *Transcript) Add(index int, markdown string) {
	t.pages = append(t.pages, transcriptPage{index: index, markdown: strings.TrimSpace(markdown)})
}

// Len is the number of pages recorded.
func (t *Transcript) Len() int {
	return len(t.pages)
}

// Render returns the transcript as Markdown.
func (t *Transcript) Render() []byte {
	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", t.Title)
	}
	for i, p := range t.pages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Page %d\n\n", p.index)
		if p.markdown == "" {
			b.WriteString("_No text recognized._\n")
			continue
		}
		b.WriteString(p.markdown)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// Extension returns the file extension for the transcript.
func (t *Transcript) Extension() string {
	return ".md"
}
