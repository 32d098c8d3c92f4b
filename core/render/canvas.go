// Package render: page geometry.
// Canvas sizes a PDF page from a raster page and maps recognized word
// positions from image pixels into page space.
package render

import (
	"math"

	"github.com/gaurav-prasanna/folioscan/core"
)

// PointsPerMM converts millimetres to PDF points.
const PointsPerMM = 72.0 / 25.4

// DefaultMargin is the total margin added to each page dimension (2 mm).
const DefaultMargin = 2 * PointsPerMM

// Canvas is the layout of one PDF page. All values are in points with the
// origin at the bottom-left corner of the page.
type Canvas struct {
	PageW, PageH   float64
	Margin         float64
	ImageX, ImageY float64
	ImageW, ImageH float64
	PixelW, PixelH int
}

// Build lays out a page for an image of widthPx x heightPx pixels at dpi.
// Each page dimension is the image's physical size plus margin; the image
// is scaled to fit a box inset by margin/2 on every side and centred in it.
func Build(widthPx, heightPx int, dpi, margin float64) Canvas {
	if dpi <= 0 {
		dpi = core.DefaultDPI
	}
	if margin < 0 {
		margin = 0
	}
	c := Canvas{
		PageW:  float64(widthPx)*72/dpi + margin,
		PageH:  float64(heightPx)*72/dpi + margin,
		Margin: margin,
		PixelW: widthPx,
		PixelH: heightPx,
	}

	boxW := c.PageW - margin
	boxH := c.PageH - margin
	if widthPx <= 0 || heightPx <= 0 || boxW <= 0 || boxH <= 0 {
		return c
	}
	scale := math.Min(boxW/float64(widthPx), boxH/float64(heightPx))
	c.ImageW = float64(widthPx) * scale
	c.ImageH = float64(heightPx) * scale
	c.ImageX = margin/2 + (boxW-c.ImageW)/2
	c.ImageY = margin/2 + (boxH-c.ImageH)/2
	return c
}

// ToPageSpace converts a token's top-left pixel position into page space
// with a bottom-left origin: x' = left*pageW/imgW, y' = pageH - top*pageH/imgH.
func ToPageSpace(tok core.OCRToken, imgW, imgH int, pageW, pageH float64) (x, y float64) {
	if imgW <= 0 || imgH <= 0 {
		return 0, pageH
	}
	x = float64(tok.Left) * pageW / float64(imgW)
	y = pageH - float64(tok.Top)*pageH/float64(imgH)
	return x, y
}

// TextAnchor is where a token's text baseline starts on this canvas,
// shifted inward by half the margin like the image itself.
func (c Canvas) TextAnchor(tok core.OCRToken) (x, y float64) {
	x, y = ToPageSpace(tok, c.PixelW, c.PixelH, c.PageW, c.PageH)
	return x + c.Margin/2, y - c.Margin/2
}

// FontSize is the glyph height in points for a token, derived from its
// pixel height on this canvas.
func (c Canvas) FontSize(tok core.OCRToken) float64 {
	if c.PixelH <= 0 || tok.Height <= 0 {
		return 8
	}
	size := float64(tok.Height) * c.ImageH / float64(c.PixelH)
	return math.Max(1, size)
}

// TopY converts a bottom-left y coordinate into gofpdf's top-left system.
func (c Canvas) TopY(y float64) float64 {
	return c.PageH - y
}
