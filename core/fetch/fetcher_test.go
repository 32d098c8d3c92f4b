package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gaurav-prasanna/folioscan/core"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	session := core.Session{
		BaseURL: srv.URL + "/",
		Headers: map[string]string{"User-Agent": "folioscan-test", "X-CSRF-Token": "tok"},
		Cookies: []core.Cookie{
			{Name: "_dss_", Value: "abc"},
			{Name: "elsewhere", Value: "nope", Domain: "example.org"},
		},
	}
	c, err := New(session, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(core.Session{}); err == nil {
		t.Fatal("New() error = nil, want error for empty base URL")
	}
}

func TestFetchPageMetadata_RequestShape(t *testing.T) {
	var gotPath, gotQuery, gotUA, gotCSRF string
	var gotCookies []*http.Cookie
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotCSRF = r.Header.Get("X-CSRF-Token")
		gotCookies = r.Cookies()
		w.Write([]byte(`{"imageUrl":"https://cdn.example/p1.jpg"}`))
	}))
	defer srv.Close()

	fixed := time.Unix(1700000000, 0)
	c := newTestClient(t, srv, WithClock(func() time.Time { return fixed }), WithTimezoneOffset(10800))
	md, err := c.FetchPageMetadata(context.Background(), core.Document{ID: "doc1", ViewID: "v9"}, 3)
	if err != nil {
		t.Fatalf("FetchPageMetadata() error = %v", err)
	}
	if loc, ok := md.ImageLocator(""); !ok || loc != "https://cdn.example/p1.jpg" {
		t.Errorf("ImageLocator() = %q, %v", loc, ok)
	}
	if gotPath != "/view/doc1/d/v9/page_data/3" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "timezoneOffset=10800&viewLoadTime=1700000000" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUA != "folioscan-test" || gotCSRF != "tok" {
		t.Errorf("headers = UA %q, CSRF %q", gotUA, gotCSRF)
	}
	if len(gotCookies) != 1 || gotCookies[0].Name != "_dss_" || gotCookies[0].Value != "abc" {
		t.Errorf("cookies = %v, want only _dss_=abc", gotCookies)
	}
}

func TestFetchPageMetadata_WithoutViewID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"imageUrl":"x"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.FetchPageMetadata(context.Background(), core.Document{ID: "doc1"}, 1); err != nil {
		t.Fatalf("FetchPageMetadata() error = %v", err)
	}
	if gotPath != "/view/doc1/page_data/1" {
		t.Errorf("path = %q, want /view/doc1/page_data/1", gotPath)
	}
}

func TestFetchPageMetadata_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   core.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, "", core.CodeAuth},
		{"forbidden", http.StatusForbidden, "", core.CodeAuth},
		{"not found", http.StatusNotFound, "", core.CodeNotFound},
		{"empty body", http.StatusOK, "", core.CodeNotFound},
		{"null body", http.StatusOK, "null", core.CodeNotFound},
		{"empty object", http.StatusOK, "{}", core.CodeNotFound},
		{"server error", http.StatusInternalServerError, "", core.CodeNetwork},
		{"html body", http.StatusOK, "<html></html>", core.CodeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			_, err := c.FetchPageMetadata(context.Background(), core.Document{ID: "d"}, 1)
			if got := core.CodeOf(err); got != tt.want {
				t.Errorf("CodeOf(err) = %q, want %q (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestFetchPageMetadata_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.FetchPageMetadata(context.Background(), core.Document{ID: "d"}, 1)
	if got := core.CodeOf(err); got != core.CodeNetwork {
		t.Errorf("CodeOf(err) = %q, want NETWORK_FAILURE", got)
	}
}

func TestFetchImageBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Write([]byte("imagedata"))
		case "/big.jpg":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxImageBytes(32))
	data, err := c.FetchImageBytes(context.Background(), srv.URL+"/ok.jpg")
	if err != nil || string(data) != "imagedata" {
		t.Fatalf("FetchImageBytes(ok) = %q, %v", data, err)
	}
	if _, err := c.FetchImageBytes(context.Background(), srv.URL+"/big.jpg"); core.CodeOf(err) != core.CodeNetwork {
		t.Errorf("FetchImageBytes(big) error = %v, want NETWORK_FAILURE", err)
	}
	if _, err := c.FetchImageBytes(context.Background(), srv.URL+"/missing.jpg"); core.CodeOf(err) != core.CodeNetwork {
		t.Errorf("FetchImageBytes(missing) error = %v, want NETWORK_FAILURE", err)
	}
}

func TestFetchTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>  Series A Deck  </title></head><body></body></html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	title, err := c.FetchTitle(context.Background(), core.Document{ID: "d"})
	if err != nil {
		t.Fatalf("FetchTitle() error = %v", err)
	}
	if title != "Series A Deck" {
		t.Errorf("FetchTitle() = %q, want %q", title, "Series A Deck")
	}
}

func TestCookieMatches(t *testing.T) {
	tests := []struct {
		domain, host string
		want         bool
	}{
		{"", "anything.test", true},
		{"docsend.com", "docsend.com", true},
		{".docsend.com", "api.docsend.com", true},
		{"docsend.com", "notdocsend.com", false},
		{"example.org", "127.0.0.1", false},
	}
	for _, tt := range tests {
		if got := cookieMatches(tt.domain, tt.host); got != tt.want {
			t.Errorf("cookieMatches(%q, %q) = %v, want %v", tt.domain, tt.host, got, tt.want)
		}
	}
}
