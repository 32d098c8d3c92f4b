package normalize

import (
	"strings"
	"testing"
)

const twoParagraphs = `<html><body><div class='ocr_page'>
 <p class='ocr_par'>
  <span class='ocr_line'><span class='ocrx_word'>Series</span> <span class='ocrx_word'>A</span></span>
  <span class='ocr_line'><span class='ocrx_word'>Term</span>
     <span class='ocrx_word'>Sheet</span></span>
 </p>
 <p class='ocr_par'>
  <span class='ocr_line'><span class='ocrx_word'>Confidential</span></span>
 </p>
</div></body></html>`

func TestNormalize_Paragraphs(t *testing.T) {
	md, err := New().Normalize(twoParagraphs)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	for _, want := range []string{"Series A", "Term Sheet", "Confidential"} {
		if !strings.Contains(md, want) {
			t.Errorf("Normalize() = %q, missing %q", md, want)
		}
	}
	if !strings.Contains(md, "\n\n") {
		t.Errorf("Normalize() = %q, want paragraphs separated by a blank line", md)
	}
	if strings.Index(md, "Series A") > strings.Index(md, "Confidential") {
		t.Errorf("Normalize() reordered paragraphs: %q", md)
	}
}

func TestNormalize_LinesWithoutParagraphs(t *testing.T) {
	md, err := New().Normalize(`<span class="ocr_line">first line</span><span class="ocr_line">second</span>`)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !strings.Contains(md, "first line") || !strings.Contains(md, "second") {
		t.Errorf("Normalize() = %q", md)
	}
}

func TestNormalize_Empty(t *testing.T) {
	md, err := New().Normalize(`<html><body><div class="ocr_page"></div></body></html>`)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if md != "" {
		t.Errorf("Normalize() = %q, want empty", md)
	}
}
