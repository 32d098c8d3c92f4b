// Package fetch implements the authenticated session client used during
// acquisition. Every request carries the session headers and cookies; the
// client never retries, so callers see each failure exactly once.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gaurav-prasanna/folioscan/core"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxImageBytes = 64 << 20
)

// Client talks to the remote document viewer on behalf of one session.
type Client struct {
	session        core.Session
	client         *http.Client
	locatorField   string
	timezoneOffset int
	now            func() time.Time
	maxImageBytes  int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithLocatorField sets the metadata key that holds the image URL.
func WithLocatorField(field string) Option {
	return func(c *Client) {
		if field != "" {
			c.locatorField = field
		}
	}
}

// WithTimezoneOffset sets the timezoneOffset query parameter in seconds.
func WithTimezoneOffset(seconds int) Option {
	return func(c *Client) { c.timezoneOffset = seconds }
}

// WithClock overrides the clock used for the viewLoadTime parameter.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxImageBytes caps the size of a downloaded image.
func WithMaxImageBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxImageBytes = n
		}
	}
}

// New creates a Client for session. The session is copied, so later changes
// by the caller have no effect.
func New(session core.Session, opts ...Option) (*Client, error) {
	s := session.Clone()
	if s.BaseURL == "" {
		return nil, errors.New("session base URL is required")
	}
	if _, err := url.Parse(s.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	_, offset := time.Now().Zone()
	c := &Client{
		session:        s,
		client:         &http.Client{Timeout: defaultTimeout},
		locatorField:   core.DefaultLocatorField,
		timezoneOffset: offset,
		now:            time.Now,
		maxImageBytes:  defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LocatorField reports the metadata key holding the image URL.
func (c *Client) LocatorField() string {
	return c.locatorField
}

// MetadataURL builds the page metadata endpoint for doc and page.
func (c *Client) MetadataURL(doc core.Document, page int) string {
	var b strings.Builder
	b.WriteString(c.session.BaseURL)
	b.WriteString("/view/")
	b.WriteString(url.PathEscape(doc.ID))
	if doc.ViewID != "" {
		b.WriteString("/d/")
		b.WriteString(url.PathEscape(doc.ViewID))
	}
	b.WriteString("/page_data/")
	b.WriteString(strconv.Itoa(page))

	q := url.Values{}
	q.Set("viewLoadTime", strconv.FormatInt(c.now().Unix(), 10))
	q.Set("timezoneOffset", strconv.Itoa(c.timezoneOffset))
	return b.String() + "?" + q.Encode()
}

// ViewerURL is the human-facing page of the document.
func (c *Client) ViewerURL(doc core.Document) string {
	u := c.session.BaseURL + "/view/" + url.PathEscape(doc.ID)
	if doc.ViewID != "" {
		u += "/d/" + url.PathEscape(doc.ViewID)
	}
	return u
}

// FetchPageMetadata requests the metadata record of one page. A missing page
// (404, or an empty or null body) is reported as NOT_FOUND so the caller can
// treat it as the end of the document.
func (c *Client) FetchPageMetadata(ctx context.Context, doc core.Document, page int) (core.Metadata, error) {
	const op = "fetching page metadata"
	resp, err := c.get(ctx, c.MetadataURL(doc, page))
	if err != nil {
		return nil, core.NewError(core.CodeNetwork, op, page, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, core.NewError(core.CodeAuth, op, page, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NewError(core.CodeNotFound, op, page, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, core.NewError(core.CodeNetwork, op, page, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.CodeNetwork, op, page, fmt.Errorf("reading response body: %w", err))
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, core.NewError(core.CodeNotFound, op, page, errors.New("empty response"))
	}

	var md core.Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, core.NewError(core.CodeNetwork, op, page, fmt.Errorf("decoding metadata: %w", err))
	}
	if len(md) == 0 {
		return nil, core.NewError(core.CodeNotFound, op, page, errors.New("empty metadata"))
	}
	return md, nil
}

// FetchImageBytes downloads the raw bytes behind an image locator.
func (c *Client) FetchImageBytes(ctx context.Context, rawURL string) ([]byte, error) {
	const op = "fetching image"
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, core.NewError(core.CodeNetwork, op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewError(core.CodeNetwork, op, 0, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, core.NewError(core.CodeNetwork, op, 0, fmt.Errorf("reading image body: %w", err))
	}
	if int64(len(body)) > c.maxImageBytes {
		return nil, core.NewError(core.CodeNetwork, op, 0, fmt.Errorf("image exceeds %d bytes", c.maxImageBytes))
	}
	return body, nil
}

// FetchTitle reads the <title> of the document viewer page.
func (c *Client) FetchTitle(ctx context.Context, doc core.Document) (string, error) {
	resp, err := c.get(ctx, c.ViewerURL(doc))
	if err != nil {
		return "", fmt.Errorf("fetching viewer page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for viewer page", resp.StatusCode)
	}
	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing viewer page: %w", err)
	}
	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		return "", errors.New("viewer page has no title")
	}
	return title, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.session.Headers {
		req.Header.Set(k, v)
	}
	host := hostOnly(req.URL.Host)
	for _, ck := range c.session.Cookies {
		if cookieMatches(ck.Domain, host) {
			req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", req.URL.Redacted(), err)
	}
	return resp, nil
}

// cookieMatches applies the usual domain-match rule: exact host or any
// subdomain of a leading-dot or bare domain. Empty domains match every host.
func cookieMatches(domain, host string) bool {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return true
	}
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
