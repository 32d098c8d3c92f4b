// Package core defines the shared types and pipeline interfaces for folioscan.
// Each stage of the pipeline is a small, testable interface; concrete
// implementations live in the sub-packages.
package core

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// DefaultDPI is assumed when a page image carries no resolution metadata.
const DefaultDPI = 300.0

// DefaultLocatorField is the metadata key holding the page image URL.
const DefaultLocatorField = "imageUrl"

// Cookie is a single session cookie. An empty Domain means the cookie is
// sent with every request of the session.
type Cookie struct {
	Name   string `yaml:"name" json:"name"`
	Value  string `yaml:"value" json:"value"`
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

// Session holds everything needed to authenticate against the remote viewer.
type Session struct {
	BaseURL string
	Headers map[string]string
	Cookies []Cookie
}

// Clone returns a deep copy so the caller cannot mutate a session in use.
func (s Session) Clone() Session {
	out := Session{BaseURL: strings.TrimSuffix(s.BaseURL, "/")}
	if s.Headers != nil {
		out.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			out.Headers[k] = v
		}
	}
	out.Cookies = append([]Cookie(nil), s.Cookies...)
	return out
}

// Document identifies the remote document to acquire.
type Document struct {
	ID        string
	ViewID    string // optional; some deployments omit it
	Name      string // optional; used for output naming
	StartPage int    // 1-based; zero means 1
	EndPage   int    // inclusive; zero means unbounded
}

// First returns the first page index to request.
func (d Document) First() int {
	if d.StartPage < 1 {
		return 1
	}
	return d.StartPage
}

// Page is one acquired page image.
type Page struct {
	Index  int
	Image  []byte
	Width  int
	Height int
	DPI    float64
	Format string // "jpeg", "png", ...
}

// OCRToken is one recognized word, positioned in image pixels with the
// origin at the top-left corner.
type OCRToken struct {
	Text       string
	Left       int
	Top        int
	Width      int
	Height     int
	Confidence float64
}

// Metadata is the opaque page description returned by the viewer API.
type Metadata map[string]any

// ImageLocator returns the image URL stored under field, if any.
func (m Metadata) ImageLocator(field string) (string, bool) {
	if field == "" {
		field = DefaultLocatorField
	}
	v, ok := m[field].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Variant selects the text-recognition backend applied to pages.
type Variant int

const (
	VariantNone Variant = iota
	VariantEmbedded
	VariantExternal
)

func (v Variant) String() string {
	switch v {
	case VariantNone:
		return "none"
	case VariantEmbedded:
		return "embedded"
	case VariantExternal:
		return "external"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// MarshalText lets variants appear by name in YAML and JSON reports.
func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariant converts a user-supplied name into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return VariantNone, nil
	case "embedded", "tesseract":
		return VariantEmbedded, nil
	case "external", "ocrmypdf":
		return VariantExternal, nil
	default:
		return VariantNone, fmt.Errorf("unknown recognition variant %q (want none, embedded or external)", s)
	}
}

// PageSource issues the two requests acquisition needs.
type PageSource interface {
	FetchPageMetadata(ctx context.Context, doc Document, page int) (Metadata, error)
	FetchImageBytes(ctx context.Context, url string) ([]byte, error)
}

// PageWriter persists validated pages.
type PageWriter interface {
	Write(page Page) error
}

// PageReader enumerates stored pages in ascending index order.
type PageReader interface {
	ListOrdered(ctx context.Context) iter.Seq2[Page, error]
	Exists() bool
}
