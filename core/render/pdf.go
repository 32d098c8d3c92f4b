// Package render: PDF assembly.
// Builds a multi-page PDF with gofpdf where every page is sized to its
// raster image and may carry an invisible text layer over the image.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/raster"
)

// textRenderInvisible is PDF text rendering mode 3: neither fill nor stroke.
const textRenderInvisible = 3

// DocumentOptions configures a new Document.
type DocumentOptions struct {
	Margin  float64   // total margin in points; negative means DefaultMargin
	Created time.Time // zero means now
	Title   string
}

// Document accumulates pages in the order they are added.
type Document struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	margin  float64
	indices []int
}

// NewDocument starts an empty PDF measured in points.
func NewDocument(opts DocumentOptions) *Document {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "A4",
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("folioscan", false)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	created := opts.Created
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)

	margin := opts.Margin
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Document{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		margin: margin,
	}
}

// AddPage appends page with its image drawn into the canvas. When tokens is
// non-empty each token is written as invisible text at its position.
func (d *Document) AddPage(page core.Page, tokens []core.OCRToken) (Canvas, error) {
	if len(d.indices) > 0 && page.Index <= d.indices[len(d.indices)-1] {
		return Canvas{}, fmt.Errorf("page %d added after page %d", page.Index, d.indices[len(d.indices)-1])
	}

	// A failed image registration poisons the whole gofpdf document, so
	// every page is fully decoded before gofpdf sees it.
	data, info, err := raster.Normalize(page.Image)
	if err != nil {
		return Canvas{}, core.NewError(core.CodeImageDecode, "decoding page image", page.Index, err)
	}
	width, height, dpi := page.Width, page.Height, page.DPI
	if width <= 0 || height <= 0 {
		width, height = info.Width, info.Height
	}
	if dpi <= 0 {
		dpi = info.DPI
	}

	c := Build(width, height, dpi, d.margin)
	name := fmt.Sprintf("page-%d", page.Index)
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if err := d.pdf.Error(); err != nil {
		return Canvas{}, core.NewError(core.CodeImageDecode, "registering page image", page.Index, err)
	}

	d.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: c.PageW, Ht: c.PageH})
	d.pdf.ImageOptions(name, c.ImageX, c.TopY(c.ImageY+c.ImageH), c.ImageW, c.ImageH, false, opts, 0, "")

	if len(tokens) > 0 {
		d.pdf.SetTextRenderingMode(textRenderInvisible)
		for _, tok := range tokens {
			text := strings.TrimSpace(tok.Text)
			if text == "" {
				continue
			}
			size := c.FontSize(tok)
			x, y := c.TextAnchor(tok)
			d.pdf.SetFont("Helvetica", "", size)
			d.pdf.Text(x, c.TopY(y-size), d.tr(text))
		}
		d.pdf.SetTextRenderingMode(0)
	}

	if err := d.pdf.Error(); err != nil {
		return Canvas{}, fmt.Errorf("rendering page %d: %w", page.Index, err)
	}
	d.indices = append(d.indices, page.Index)
	return c, nil
}

// Pages returns the indices of the pages added so far, in order.
func (d *Document) Pages() []int {
	return append([]int(nil), d.indices...)
}

// Output writes the finished PDF to w. The same pages and creation time
// always produce the same bytes. The Document cannot be used after.
func (d *Document) Output(w io.Writer) error {
	if len(d.indices) == 0 {
		return core.ErrNothingToCompile
	}
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	data, err := orderImages(buf.Bytes())
	if err != nil {
		return fmt.Errorf("ordering pdf images: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
