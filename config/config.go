// Package config loads folioscan settings from a YAML session file and the
// environment. Values are applied in order: built-in defaults, the YAML
// file, a .env file, process environment, then command-line flags (applied
// by the caller).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/ocr"
	"github.com/gaurav-prasanna/folioscan/core/output"
	"github.com/gaurav-prasanna/folioscan/core/render"
	"github.com/gaurav-prasanna/folioscan/crawl"
)

const (
	DefaultBaseURL   = "https://docsend.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
	DefaultWorkDir   = "downloaded_images"
	DefaultOutputDir = "pdf_documents"
	DefaultFile      = "folioscan.yaml"

	// Placeholder marks template values the user has not filled in yet.
	Placeholder = "YOUR_COOKIE_VALUE_HERE"
)

// Config holds every setting the CLI needs.
type Config struct {
	BaseURL   string            `yaml:"base_url"`
	UserAgent string            `yaml:"user_agent"`
	CSRFToken string            `yaml:"csrf_token"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Cookies   []core.Cookie     `yaml:"cookies"`

	Document DocumentConfig `yaml:"document"`

	WorkDir   string `yaml:"work_dir"`
	OutputDir string `yaml:"output_dir"`

	Acquire AcquireConfig `yaml:"acquire"`
	Compile CompileConfig `yaml:"compile"`
}

// DocumentConfig identifies the document. URL takes precedence over ID and
// ViewID when both are given.
type DocumentConfig struct {
	URL       string `yaml:"url"`
	ID        string `yaml:"id"`
	ViewID    string `yaml:"view_id"`
	Name      string `yaml:"name"`
	StartPage int    `yaml:"start_page"`
	EndPage   int    `yaml:"end_page"`
}

// AcquireConfig tunes the pagination controller and the HTTP client.
type AcquireConfig struct {
	Cooldown       time.Duration `yaml:"cooldown"`
	Timeout        time.Duration `yaml:"timeout"`
	TimezoneOffset *int          `yaml:"timezone_offset"` // seconds; nil uses the local zone
	Resume         bool          `yaml:"resume"`
}

// CompileConfig tunes compilation.
type CompileConfig struct {
	Variant         string              `yaml:"variant"`
	Language        string              `yaml:"language"`
	MarginMM        float64             `yaml:"margin_mm"`
	Transcript      bool                `yaml:"transcript"`
	External        ocr.ExternalOptions `yaml:"external"`
	ExternalTool    string              `yaml:"external_tool"`
	ExternalTimeout time.Duration       `yaml:"external_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	ext := ocr.DefaultExternalOptions()
	ext.Language = "" // follows compile.language unless set
	return &Config{
		UserAgent: DefaultUserAgent,
		WorkDir:   DefaultWorkDir,
		OutputDir: DefaultOutputDir,
		Acquire: AcquireConfig{
			Cooldown: time.Second,
			Timeout:  30 * time.Second,
		},
		Compile: CompileConfig{
			Variant:         core.VariantNone.String(),
			Language:        "eng",
			MarginMM:        2,
			External:        ext,
			ExternalTool:    ocr.DefaultExternalTool,
			ExternalTimeout: ocr.DefaultExternalTimeout,
		},
	}
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.BaseURL = getEnvOrDefault("FOLIOSCAN_BASE_URL", c.BaseURL)
	c.UserAgent = getEnvOrDefault("FOLIOSCAN_USER_AGENT", c.UserAgent)
	c.CSRFToken = getEnvOrDefault("FOLIOSCAN_CSRF_TOKEN", c.CSRFToken)
	c.WorkDir = getEnvOrDefault("FOLIOSCAN_WORK_DIR", c.WorkDir)
	c.OutputDir = getEnvOrDefault("FOLIOSCAN_OUTPUT_DIR", c.OutputDir)
	c.Compile.Language = getEnvOrDefault("FOLIOSCAN_OCR_LANGUAGE", c.Compile.Language)
	c.Compile.ExternalTool = getEnvOrDefault("FOLIOSCAN_EXTERNAL_TOOL", c.Compile.ExternalTool)
	c.Document.URL = getEnvOrDefault("FOLIOSCAN_DOCUMENT_URL", c.Document.URL)
	c.Document.EndPage = getEnvAsIntOrDefault("FOLIOSCAN_END_PAGE", c.Document.EndPage)

	if raw := os.Getenv("FOLIOSCAN_COOKIES"); raw != "" {
		cookies, err := ParseCookieHeader(raw)
		if err != nil {
			return fmt.Errorf("FOLIOSCAN_COOKIES: %w", err)
		}
		c.Cookies = cookies
	}
	return nil
}

// ParseCookieHeader parses a browser-style "name=value; name2=value2" string.
func ParseCookieHeader(raw string) ([]core.Cookie, error) {
	var out []core.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed cookie %q", part)
		}
		out = append(out, core.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return out, nil
}

// Validate checks the settings needed to talk to the viewer.
func (c *Config) Validate() error {
	if err := c.ValidateCompile(); err != nil {
		return err
	}
	if len(c.Cookies) == 0 {
		return errors.New("no cookies configured (set cookies in the config file or FOLIOSCAN_COOKIES)")
	}
	for _, ck := range c.Cookies {
		if ck.Name == "" {
			return errors.New("cookie with empty name")
		}
		if ck.Value == "" || ck.Value == Placeholder {
			return fmt.Errorf("cookie %s has no value; copy it from your browser", ck.Name)
		}
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	if _, err := c.Target(); err != nil {
		return err
	}
	if c.Acquire.Cooldown < 0 {
		return fmt.Errorf("acquire.cooldown must not be negative, got %s", c.Acquire.Cooldown)
	}
	if c.Acquire.Timeout < 0 {
		return fmt.Errorf("acquire.timeout must not be negative, got %s", c.Acquire.Timeout)
	}
	return nil
}

// ValidateCompile checks only the settings compilation uses, so that a
// store can be compiled without credentials.
func (c *Config) ValidateCompile() error {
	if _, err := c.Variant(); err != nil {
		return err
	}
	if c.Compile.MarginMM < 0 {
		return fmt.Errorf("compile.margin_mm must not be negative, got %v", c.Compile.MarginMM)
	}
	if c.Compile.ExternalTimeout < 0 {
		return fmt.Errorf("compile.external_timeout must not be negative, got %s", c.Compile.ExternalTimeout)
	}
	if err := c.ExternalOptions().Validate(); err != nil {
		return fmt.Errorf("compile.external: %w", err)
	}
	if c.WorkDir == "" {
		return errors.New("work_dir is required")
	}
	return nil
}

// Target resolves the configured document.
func (c *Config) Target() (core.Document, error) {
	d := c.Document
	doc := core.Document{ID: d.ID, ViewID: d.ViewID, Name: d.Name, StartPage: d.StartPage, EndPage: d.EndPage}
	if d.URL != "" {
		link, err := crawl.ParseViewerURL(d.URL)
		if err != nil {
			return core.Document{}, err
		}
		doc = link.Document(doc)
	}
	if doc.ID == "" {
		return core.Document{}, errors.New("document.url or document.id is required")
	}
	if doc.StartPage < 0 || doc.EndPage < 0 {
		return core.Document{}, errors.New("page bounds must not be negative")
	}
	if doc.EndPage > 0 && doc.EndPage < doc.First() {
		return core.Document{}, fmt.Errorf("end_page %d is before start_page %d", doc.EndPage, doc.First())
	}
	return doc, nil
}

// ResolvedBaseURL returns base_url, else the host of document.url, else
// DefaultBaseURL.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	if c.Document.URL != "" {
		if link, err := crawl.ParseViewerURL(c.Document.URL); err == nil {
			return link.BaseURL
		}
	}
	return DefaultBaseURL
}

// Session builds the authenticated session. Headers from the config file
// override the defaults.
func (c *Config) Session() core.Session {
	base := c.ResolvedBaseURL()
	headers := map[string]string{
		"User-Agent":       c.UserAgent,
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"Accept-Language":  "en-GB,en;q=0.9,en-US;q=0.8",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          base + "/",
	}
	if c.CSRFToken != "" {
		headers["X-CSRF-Token"] = c.CSRFToken
	}
	for k, v := range c.Headers {
		headers[k] = v
	}
	return core.Session{BaseURL: base, Headers: headers, Cookies: c.Cookies}.Clone()
}

// Variant parses compile.variant.
func (c *Config) Variant() (core.Variant, error) {
	return core.ParseVariant(c.Compile.Variant)
}

// Margin returns the page margin in points.
func (c *Config) Margin() float64 {
	return c.Compile.MarginMM * render.PointsPerMM
}

// ExternalOptions returns the external tool options with the configured
// language filled in when the options leave it empty.
func (c *Config) ExternalOptions() ocr.ExternalOptions {
	opts := c.Compile.External
	if opts.Language == "" {
		opts.Language = c.Compile.Language
	}
	return opts
}

// StoreDir returns the page directory for a document name.
func (c *Config) StoreDir(name string) string {
	return filepath.Join(c.WorkDir, output.Slug(name))
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
