package extract

import (
	"testing"
)

const sampleHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
 <body>
  <div class='ocr_page' id='page_1' title='image "page.jpg"; bbox 0 0 1200 1600; ppageno 0'>
   <div class='ocr_carea' id='block_1_1' title="bbox 36 92 580 120">
    <p class='ocr_par' id='par_1_1' lang='eng' title="bbox 36 92 580 120">
     <span class='ocr_line' id='line_1_1' title="bbox 36 92 580 120; baseline 0 -6; x_size 28">
      <span class='ocrx_word' id='word_1_1' title='bbox 36 92 108 120; x_wconf 91'>Term</span>
      <span class='ocrx_word' id='word_1_2' title='bbox 120 92 220 120; x_wconf 12'>Sheet</span>
      <span class='ocrx_word' id='word_1_3' title='bbox 230 92 240 120; x_wconf 95'> </span>
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestExtract_Words(t *testing.T) {
	tokens, err := New().Extract(sampleHOCR)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("Extract() = %d tokens, want 2", len(tokens))
	}
	first := tokens[0]
	if first.Text != "Term" || first.Left != 36 || first.Top != 92 || first.Width != 72 || first.Height != 28 {
		t.Errorf("first token = %+v", first)
	}
	if first.Confidence != 91 {
		t.Errorf("first token confidence = %v, want 91", first.Confidence)
	}
	if tokens[1].Text != "Sheet" {
		t.Errorf("second token = %q, want Sheet", tokens[1].Text)
	}
}

func TestExtract_MinConfidence(t *testing.T) {
	e := &HOCRExtractor{MinConfidence: 50}
	tokens, err := e.Extract(sampleHOCR)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Text != "Term" {
		t.Errorf("Extract() = %+v, want only Term", tokens)
	}
}

func TestExtract_NoWords(t *testing.T) {
	tokens, err := New().Extract(`<html><body><div class="ocr_page"></div></body></html>`)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("Extract() = %+v, want none", tokens)
	}
}

func TestExtract_MalformedBox(t *testing.T) {
	_, err := New().Extract(`<span class="ocrx_word" title="bbox 1 2 x 4">bad</span>`)
	if err == nil {
		t.Fatal("Extract() error = nil, want error for malformed bbox")
	}
}

func TestParseTitle(t *testing.T) {
	props := parseTitle("bbox 1 2 3 4; x_wconf 88 ;baseline 0 -6")
	if props["bbox"] != "1 2 3 4" || props["x_wconf"] != "88" || props["baseline"] != "0 -6" {
		t.Errorf("parseTitle() = %v", props)
	}
}
