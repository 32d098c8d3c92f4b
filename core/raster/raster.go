// Package raster validates and inspects page images before they enter the
// page store. Bytes that do not decode as an image are rejected here so a
// corrupt download never becomes a stored page.
package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gaurav-prasanna/folioscan/core"
)

const jpegQuality = 95

// MaxPixels bounds the decoded size of a page image. A 600 DPI letter-size scan
// is well under it; a header claiming more is rejected before decoding.
const MaxPixels = 64 << 20

// ErrTooLarge is returned for images whose header exceeds MaxPixels.
var ErrTooLarge = errors.New("image dimensions exceed the page size limit")

// Info describes a decoded page image.
type Info struct {
	Format string
	Width  int
	Height int
	DPI    float64
}

// Inspect reads the image header and resolution without decoding pixels.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("image has empty bounds %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Info{}, fmt.Errorf("%w: %s is %dx%d", ErrTooLarge, format, cfg.Width, cfg.Height)
	}
	info := Info{Format: format, Width: cfg.Width, Height: cfg.Height, DPI: core.DefaultDPI}
	if dpi, ok := density(format, data); ok {
		info.DPI = dpi
	}
	return info, nil
}

// Normalize fully decodes data and returns bytes suitable for a .jpg page
// file. The header is checked against MaxPixels before any pixels are
// decoded. JPEG input is kept byte-for-byte; other formats are re-encoded as
// JPEG carrying the original resolution.
func Normalize(data []byte) ([]byte, Info, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, Info{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("decoding %s image: %w", info.Format, err)
	}
	if info.Format == "jpeg" {
		return data, info, nil
	}

	// JPEG has no alpha; flatten onto an opaque RGBA canvas first.
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, Info{}, fmt.Errorf("encoding jpeg: %w", err)
	}
	out := WithDensity(buf.Bytes(), info.DPI)
	info.Format = "jpeg"
	return out, info, nil
}

// WithDensity inserts a JFIF APP0 segment declaring dpi right after the
// SOI marker. Input that is not a bare JPEG stream is returned unchanged.
func WithDensity(jpg []byte, dpi float64) []byte {
	if len(jpg) < 4 || jpg[0] != 0xFF || jpg[1] != 0xD8 || dpi < 1 || dpi > 65535 {
		return jpg
	}
	if jpg[2] == 0xFF && jpg[3] == 0xE0 {
		return jpg
	}
	d := uint16(dpi + 0.5)
	app0 := []byte{
		0xFF, 0xE0, 0x00, 0x10,
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.1
		0x01, // units: dots per inch
		byte(d >> 8), byte(d), byte(d >> 8), byte(d),
		0x00, 0x00, // no thumbnail
	}
	out := make([]byte, 0, len(jpg)+len(app0))
	out = append(out, jpg[:2]...)
	out = append(out, app0...)
	return append(out, jpg[2:]...)
}

func density(format string, data []byte) (float64, bool) {
	var dpi float64
	var err error
	switch format {
	case "jpeg":
		dpi, err = jfifDensity(data)
	case "png":
		dpi, err = pngDensity(data)
	default:
		return 0, false
	}
	if err != nil || dpi < 1 || dpi > 10000 {
		return 0, false
	}
	return dpi, true
}

var errNoDensity = errors.New("no density information")

// jfifDensity walks the JPEG marker segments up to the first scan looking
// for a JFIF APP0 header with absolute units.
func jfifDensity(data []byte) (float64, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, errNoDensity
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return 0, errNoDensity
		}
		marker := data[pos+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		size := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if size < 2 || pos+2+size > len(data) {
			return 0, errNoDensity
		}
		seg := data[pos+4 : pos+2+size]
		if marker == 0xE0 && len(seg) >= 12 && string(seg[:5]) == "JFIF\x00" {
			units := seg[7]
			x := float64(binary.BigEndian.Uint16(seg[8:10]))
			switch units {
			case 1:
				return x, nil
			case 2:
				return x * 2.54, nil
			default:
				return 0, errNoDensity
			}
		}
		pos += 2 + size
	}
	return 0, errNoDensity
}

// pngDensity reads the pHYs chunk when it is expressed per metre.
func pngDensity(data []byte) (float64, error) {
	const sigLen = 8
	pos := sigLen
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		start := pos + 8
		if length < 0 || start+length > len(data) {
			return 0, errNoDensity
		}
		switch typ {
		case "pHYs":
			if length < 9 || data[start+8] != 1 {
				return 0, errNoDensity
			}
			ppm := float64(binary.BigEndian.Uint32(data[start : start+4]))
			return ppm * 0.0254, nil
		case "IDAT", "IEND":
			return 0, errNoDensity
		}
		pos = start + length + 4 // skip CRC
	}
	return 0, errNoDensity
}
