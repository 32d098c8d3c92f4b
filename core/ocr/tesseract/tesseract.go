// Package tesseract is the embedded recognition engine, backed by the
// tesseract library through gosseract. It is kept apart from package ocr so
// that only binaries that need it link against libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/extract"
	"github.com/gaurav-prasanna/folioscan/core/ocr"
)

// Engine recognizes one page at a time with a fresh tesseract client.
type Engine struct {
	Languages []string

	clientFactory func() *gosseract.Client
	extractor     *extract.HOCRExtractor
}

// New creates an Engine for the given languages ("eng" when none).
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{
		Languages:     languages,
		clientFactory: gosseract.NewClient,
		extractor:     extract.New(),
	}
}

// ParseLanguages splits a tesseract language list such as "eng+deu".
func ParseLanguages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' })
}

// Probe checks that trained data exists for every configured language.
func (e *Engine) Probe(_ context.Context) ocr.Availability {
	av := ocr.Availability{Variant: core.VariantEmbedded, Version: gosseract.Version()}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		av.Reason = fmt.Sprintf("listing tesseract languages: %v", err)
		return av
	}
	for _, l := range e.Languages {
		if !slices.Contains(langs, l) {
			av.Reason = fmt.Sprintf("tesseract language %q is not installed", l)
			return av
		}
	}
	av.Available = true
	return av
}

// Recognize runs tesseract on page and returns its words in image pixels.
func (e *Engine) Recognize(ctx context.Context, page core.Page) (ocr.Recognition, error) {
	const op = "recognizing page"
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.Languages...); err != nil {
		return ocr.Recognition{}, core.NewError(core.CodeBackendMissing, op, page.Index, fmt.Errorf("set languages: %w", err))
	}
	if page.DPI > 0 {
		dpi := strconv.Itoa(int(page.DPI + 0.5))
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), dpi); err != nil {
			return ocr.Recognition{}, core.NewError(core.CodeBackendExecution, op, page.Index, fmt.Errorf("set dpi: %w", err))
		}
	}
	if err := c.SetImageFromBytes(page.Image); err != nil {
		return ocr.Recognition{}, core.NewError(core.CodeBackendExecution, op, page.Index, fmt.Errorf("set image: %w", err))
	}

	hocr, err := c.HOCRText()
	if err != nil {
		return ocr.Recognition{}, core.NewError(core.CodeBackendExecution, op, page.Index, fmt.Errorf("recognize text: %w", err))
	}
	tokens, err := e.extractor.Extract(hocr)
	if err != nil {
		return ocr.Recognition{}, core.NewError(core.CodeBackendExecution, op, page.Index, err)
	}
	return ocr.Recognition{Tokens: tokens, HOCR: hocr}, nil
}
