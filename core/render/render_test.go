package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/gaurav-prasanna/folioscan/core"
)

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func testPage(t *testing.T, index, w, h int) core.Page {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := index % 8; y < h; y += 8 {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		t.Fatal(err)
	}
	return core.Page{Index: index, Image: buf.Bytes(), Width: w, Height: h, DPI: 300, Format: "jpeg"}
}

func TestBuild_LetterAt300DPI(t *testing.T) {
	c := Build(1200, 1600, 300, DefaultMargin)
	if !near(c.PageW, 288+DefaultMargin) || !near(c.PageH, 384+DefaultMargin) {
		t.Fatalf("page = %vx%v, want %vx%v", c.PageW, c.PageH, 288+DefaultMargin, 384+DefaultMargin)
	}
	if !near(c.ImageW, 288) || !near(c.ImageH, 384) {
		t.Errorf("image = %vx%v, want 288x384", c.ImageW, c.ImageH)
	}
	if !near(c.ImageX, DefaultMargin/2) || !near(c.ImageY, DefaultMargin/2) {
		t.Errorf("image origin = (%v, %v), want margin/2", c.ImageX, c.ImageY)
	}
}

func TestBuild_DefaultsDPI(t *testing.T) {
	c := Build(300, 300, 0, 0)
	if !near(c.PageW, 72) || !near(c.PageH, 72) {
		t.Errorf("page = %vx%v, want 72x72", c.PageW, c.PageH)
	}
}

func TestDefaultMargin(t *testing.T) {
	if math.Abs(DefaultMargin-5.669) > 0.001 {
		t.Errorf("DefaultMargin = %v, want ~5.669pt", DefaultMargin)
	}
}

func TestToPageSpace_Endpoints(t *testing.T) {
	const pageW, pageH = 400.0, 500.0
	tests := []struct {
		name  string
		tok   core.OCRToken
		wantX float64
		wantY float64
	}{
		{"top-left", core.OCRToken{Left: 0, Top: 0}, 0, pageH},
		{"bottom-right", core.OCRToken{Left: 1200, Top: 1600}, pageW, 0},
		{"centre", core.OCRToken{Left: 600, Top: 800}, pageW / 2, pageH / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := ToPageSpace(tt.tok, 1200, 1600, pageW, pageH)
			if !near(x, tt.wantX) || !near(y, tt.wantY) {
				t.Errorf("ToPageSpace() = (%v, %v), want (%v, %v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestTextAnchor_OffsetsByHalfMargin(t *testing.T) {
	c := Build(1200, 1600, 300, 10)
	x, y := c.TextAnchor(core.OCRToken{Left: 0, Top: 0})
	if !near(x, 5) || !near(y, c.PageH-5) {
		t.Errorf("TextAnchor() = (%v, %v), want (5, %v)", x, y, c.PageH-5)
	}
}

func TestDocument_TwoPages(t *testing.T) {
	doc := NewDocument(DocumentOptions{Margin: -1, Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)})
	for i := 1; i <= 2; i++ {
		c, err := doc.AddPage(testPage(t, i, 1200, 1600), nil)
		if err != nil {
			t.Fatalf("AddPage(%d) error = %v", i, err)
		}
		if !near(c.PageW, 288+DefaultMargin) || !near(c.PageH, 384+DefaultMargin) {
			t.Errorf("page %d canvas = %vx%v", i, c.PageW, c.PageH)
		}
	}

	path := filepath.Join(t.TempDir(), "out.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Output(f); err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	f.Close()

	n, err := api.PageCountFile(path)
	if err != nil {
		t.Fatalf("PageCountFile() error = %v", err)
	}
	if n != 2 {
		t.Errorf("page count = %d, want 2", n)
	}
}

func TestDocument_RejectsOutOfOrder(t *testing.T) {
	doc := NewDocument(DocumentOptions{})
	if _, err := doc.AddPage(testPage(t, 2, 40, 40), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.AddPage(testPage(t, 1, 40, 40), nil); err == nil {
		t.Fatal("AddPage() error = nil for a lower index")
	}
	if got := doc.Pages(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Pages() = %v, want [2]", got)
	}
}

func TestDocument_UndecodablePageLeavesDocumentUsable(t *testing.T) {
	doc := NewDocument(DocumentOptions{})
	_, err := doc.AddPage(core.Page{Index: 1, Image: []byte("not an image")}, nil)
	if core.CodeOf(err) != core.CodeImageDecode {
		t.Fatalf("AddPage(garbage) error = %v, want IMAGE_DECODE_FAILURE", err)
	}
	if _, err := doc.AddPage(testPage(t, 2, 40, 40), nil); err != nil {
		t.Fatalf("AddPage() after failure error = %v", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("Output() error = %v", err)
	}
}

func TestDocument_InvisibleTextLayer(t *testing.T) {
	doc := NewDocument(DocumentOptions{Created: time.Unix(0, 0)})
	doc.pdf.SetCompression(false)
	tokens := []core.OCRToken{{Text: "Searchable", Left: 10, Top: 10, Width: 100, Height: 20}}
	if _, err := doc.AddPage(testPage(t, 1, 200, 200), tokens); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "3 Tr") || !strings.Contains(out, "(Searchable) Tj") {
		t.Error("output does not contain an invisible text run for the token")
	}
}

func buildPages(t *testing.T, n, w, h int) []byte {
	t.Helper()
	doc := NewDocument(DocumentOptions{Created: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)})
	for i := 1; i <= n; i++ {
		if _, err := doc.AddPage(testPage(t, i, w, h), nil); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDocument_DeterministicWithFixedClock(t *testing.T) {
	// Same-width pages are where gofpdf's image order depends on map
	// iteration.
	want := buildPages(t, 4, 60, 80)
	for i := 0; i < 20; i++ {
		if got := buildPages(t, 4, 60, 80); !bytes.Equal(got, want) {
			t.Fatalf("build %d differs from the first build (%d vs %d bytes)", i, len(got), len(want))
		}
	}
	if err := api.Validate(bytes.NewReader(want), model.NewDefaultConfiguration()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	n, err := api.PageCount(bytes.NewReader(want), model.NewDefaultConfiguration())
	if err != nil || n != 4 {
		t.Errorf("PageCount() = %d, %v; want 4", n, err)
	}
}

func TestOrderImages(t *testing.T) {
	doc := buildPages(t, 3, 40, 40)

	again, err := orderImages(doc)
	if err != nil {
		t.Fatalf("orderImages() error = %v", err)
	}
	if !bytes.Equal(again, doc) {
		t.Error("orderImages() changed an already ordered document")
	}

	objs, _, _, err := parseLayout(doc)
	if err != nil {
		t.Fatalf("parseLayout() error = %v", err)
	}
	var images []int
	for _, o := range objs {
		if bytes.HasPrefix(o.body(doc), imagePrefix) {
			images = append(images, o.num)
		}
	}
	if len(images) != 3 {
		t.Fatalf("image objects = %v, want 3", images)
	}
	names := map[int]string{}
	for _, o := range objs {
		if o.num != resourceObject {
			continue
		}
		for _, m := range xobjectRef.FindAllSubmatch(o.body(doc), -1) {
			n, _ := strconv.Atoi(string(m[2]))
			names[n] = string(m[1])
		}
	}
	for i := 1; i < len(images); i++ {
		if names[images[i-1]] >= names[images[i]] {
			t.Errorf("image %d (%s) precedes image %d (%s)", images[i-1], names[images[i-1]], images[i], names[images[i]])
		}
	}

	if _, err := orderImages([]byte("%PDF-1.3\nnot really")); err == nil {
		t.Error("orderImages(garbage) error = nil")
	}
}

func TestEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := NewDocument(DocumentOptions{}).Output(&buf); err != core.ErrNothingToCompile {
		t.Errorf("Output() error = %v, want ErrNothingToCompile", err)
	}
}

func TestTranscript_Render(t *testing.T) {
	tr := NewTranscript("Deck")
	tr.Add(1, "Hello")
	tr.Add(3, "")
	got := string(tr.Render())
	for _, want := range []string{"# Deck", "## Page 1", "Hello", "## Page 3", "_No text recognized._"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q:\n%s", want, got)
		}
	}
}

func TestWordIndex_Render(t *testing.T) {
	idx := NewWordIndex("deck")
	c := Build(1200, 1600, 300, 0)
	idx.Add(1, core.VariantEmbedded, c, []core.OCRToken{{Text: "a", Left: 0, Top: 0}, {Text: "b", Left: 600, Top: 800}})
	data, err := idx.Render()
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"variant": "embedded"`) || !strings.Contains(out, `"text": "a b"`) {
		t.Errorf("Render() = %s", out)
	}
}
