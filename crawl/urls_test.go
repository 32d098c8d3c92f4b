package crawl

import (
	"testing"

	"github.com/gaurav-prasanna/folioscan/core"
)

func TestParseViewerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    ViewerLink
		wantErr bool
	}{
		{
			in:   "https://docsend.com/view/4czrsfv6iketzu76/d/abc123",
			want: ViewerLink{BaseURL: "https://docsend.com", DocumentID: "4czrsfv6iketzu76", ViewID: "abc123"},
		},
		{
			in:   "https://docsend.com/view/4czrsfv6iketzu76",
			want: ViewerLink{BaseURL: "https://docsend.com", DocumentID: "4czrsfv6iketzu76"},
		},
		{
			in:   "https://example.test/tenant/view/doc9/",
			want: ViewerLink{BaseURL: "https://example.test/tenant", DocumentID: "doc9"},
		},
		{in: "https://docsend.com/other/doc", wantErr: true},
		{in: "/view/doc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseViewerURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseViewerURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseViewerURL() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestViewerLink_Document(t *testing.T) {
	link := ViewerLink{DocumentID: "doc", ViewID: "v"}
	doc := link.Document(core.Document{Name: "Deck", EndPage: 4})
	if doc.ID != "doc" || doc.ViewID != "v" || doc.Name != "Deck" || doc.EndPage != 4 {
		t.Errorf("Document() = %+v", doc)
	}
}
