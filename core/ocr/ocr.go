// Package ocr defines the text-recognition backends used during
// compilation, how their availability is probed, and the order in which
// they are tried when one fails.
package ocr

import (
	"context"

	"github.com/gaurav-prasanna/folioscan/core"
)

// Availability is the outcome of probing one backend.
type Availability struct {
	Variant   core.Variant `yaml:"variant"`
	Available bool         `yaml:"available"`
	Reason    string       `yaml:"reason,omitempty"`
	Version   string       `yaml:"version,omitempty"`
}

// Prober reports whether a backend can run on this machine.
type Prober interface {
	Probe(ctx context.Context) Availability
}

// Recognition is the recognized text of one page.
type Recognition struct {
	Tokens []core.OCRToken
	HOCR   string
}

// Recognizer runs the embedded engine on one page at a time.
type Recognizer interface {
	Prober
	Recognize(ctx context.Context, page core.Page) (Recognition, error)
}

// Runner runs the external tool over a whole image-only PDF, writing a
// replacement PDF to out.
type Runner interface {
	Prober
	Run(ctx context.Context, in, out string, opts ExternalOptions) error
}

// Plan returns the variants to try, in order, for a requested variant.
func Plan(requested core.Variant) []core.Variant {
	switch requested {
	case core.VariantExternal:
		return []core.Variant{core.VariantExternal, core.VariantEmbedded, core.VariantNone}
	case core.VariantEmbedded:
		return []core.Variant{core.VariantEmbedded, core.VariantNone}
	default:
		return []core.Variant{core.VariantNone}
	}
}

// ProbeAll probes every backend. Nil probers are reported as unavailable.
func ProbeAll(ctx context.Context, embedded Recognizer, external Runner) []Availability {
	out := []Availability{{Variant: core.VariantNone, Available: true}}
	if embedded != nil {
		out = append(out, embedded.Probe(ctx))
	} else {
		out = append(out, Availability{Variant: core.VariantEmbedded, Reason: "not configured"})
	}
	if external != nil {
		out = append(out, external.Probe(ctx))
	} else {
		out = append(out, Availability{Variant: core.VariantExternal, Reason: "not configured"})
	}
	return out
}
