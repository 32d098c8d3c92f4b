// Package crawl: viewer URL helpers.
// Turns the link a user copies from the browser into the identifiers the
// page metadata endpoint needs.
package crawl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gaurav-prasanna/folioscan/core"
)

// ViewerLink is a parsed document viewer URL.
type ViewerLink struct {
	BaseURL    string
	DocumentID string
	ViewID     string
}

// ParseViewerURL extracts the base URL, document ID and optional view ID
// from a link of the form {base}/view/{doc}[/d/{view}].
func ParseViewerURL(rawURL string) (ViewerLink, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ViewerLink{}, fmt.Errorf("parsing viewer URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ViewerLink{}, fmt.Errorf("viewer URL %q is not absolute", rawURL)
	}

	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	viewAt := -1
	for i, s := range segs {
		if s == "view" {
			viewAt = i
			break
		}
	}
	if viewAt < 0 || viewAt+1 >= len(segs) || segs[viewAt+1] == "" {
		return ViewerLink{}, fmt.Errorf("viewer URL %q has no /view/<id> segment", rawURL)
	}

	link := ViewerLink{
		BaseURL:    parsed.Scheme + "://" + parsed.Host + "/" + strings.Join(segs[:viewAt], "/"),
		DocumentID: segs[viewAt+1],
	}
	link.BaseURL = strings.TrimSuffix(link.BaseURL, "/")
	rest := segs[viewAt+2:]
	if len(rest) >= 2 && rest[0] == "d" && rest[1] != "" {
		link.ViewID = rest[1]
	}
	return link, nil
}

// Document converts the link into a Document, keeping the page bounds and
// name from base.
func (l ViewerLink) Document(base core.Document) core.Document {
	base.ID = l.DocumentID
	if l.ViewID != "" {
		base.ViewID = l.ViewID
	}
	return base
}
