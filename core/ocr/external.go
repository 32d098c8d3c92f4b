package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/gaurav-prasanna/folioscan/core"
)

const (
	// DefaultExternalTool is the executable used for the External variant.
	DefaultExternalTool = "ocrmypdf"

	// DefaultExternalTimeout bounds one invocation of the external tool.
	DefaultExternalTimeout = 10 * time.Minute

	stderrTail = 2048
)

// ExternalOptions are the knobs passed to the external tool. Zero values
// leave the tool's own default in place.
type ExternalOptions struct {
	Optimize    int    `yaml:"optimize"`     // 0-3
	Oversample  int    `yaml:"oversample"`   // dpi
	Deskew      bool   `yaml:"deskew"`
	Clean       bool   `yaml:"clean"`
	Language    string `yaml:"language"`
	OutputType  string `yaml:"output_type"`  // pdf, pdfa, pdfa-1, pdfa-2, pdfa-3
	RotatePages bool   `yaml:"rotate_pages"`
	ForceOCR    bool   `yaml:"force_ocr"`
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100
	PNGQuality  int    `yaml:"png_quality"`  // 1-100
}

// DefaultExternalOptions is the high-quality option set tried first.
func DefaultExternalOptions() ExternalOptions {
	return ExternalOptions{
		Optimize:    1,
		Oversample:  300,
		Deskew:      true,
		Language:    "eng",
		OutputType:  "pdf",
		RotatePages: true,
		ForceOCR:    true,
	}
}

// Minimal keeps only the language and output type.
func (o ExternalOptions) Minimal() ExternalOptions {
	return ExternalOptions{Language: o.Language, OutputType: o.OutputType}
}

// Args builds the command line for converting in to out.
func (o ExternalOptions) Args(in, out string) []string {
	var args []string
	if o.Optimize > 0 {
		args = append(args, "--optimize", strconv.Itoa(o.Optimize))
	}
	if o.Oversample > 0 {
		args = append(args, "--oversample", strconv.Itoa(o.Oversample))
	}
	if o.Deskew {
		args = append(args, "--deskew")
	}
	if o.Clean {
		args = append(args, "--clean")
	}
	if o.Language != "" {
		args = append(args, "-l", o.Language)
	}
	if o.OutputType != "" {
		args = append(args, "--output-type", o.OutputType)
	}
	if o.RotatePages {
		args = append(args, "--rotate-pages")
	}
	if o.ForceOCR {
		args = append(args, "--force-ocr")
	}
	if o.JPEGQuality > 0 {
		args = append(args, "--jpeg-quality", strconv.Itoa(o.JPEGQuality))
	}
	if o.PNGQuality > 0 {
		args = append(args, "--png-quality", strconv.Itoa(o.PNGQuality))
	}
	return append(args, in, out)
}

// Validate reports the first out-of-range option.
func (o ExternalOptions) Validate() error {
	switch {
	case o.Optimize < 0 || o.Optimize > 3:
		return fmt.Errorf("optimize must be 0-3, got %d", o.Optimize)
	case o.Oversample < 0:
		return fmt.Errorf("oversample must not be negative, got %d", o.Oversample)
	case o.JPEGQuality < 0 || o.JPEGQuality > 100:
		return fmt.Errorf("jpeg_quality must be 0-100, got %d", o.JPEGQuality)
	case o.PNGQuality < 0 || o.PNGQuality > 100:
		return fmt.Errorf("png_quality must be 0-100, got %d", o.PNGQuality)
	}
	switch o.OutputType {
	case "", "pdf", "pdfa", "pdfa-1", "pdfa-2", "pdfa-3", "none":
		return nil
	default:
		return fmt.Errorf("unknown output_type %q", o.OutputType)
	}
}

// External runs an ocrmypdf-compatible tool as a subprocess.
type External struct {
	Tool    string
	Timeout time.Duration
	Logger  *slog.Logger

	lookPath func(string) (string, error)
}

// NewExternal creates an External for tool, or DefaultExternalTool when
// tool is empty.
func NewExternal(tool string, timeout time.Duration) *External {
	if tool == "" {
		tool = DefaultExternalTool
	}
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &External{Tool: tool, Timeout: timeout, lookPath: exec.LookPath}
}

// Probe checks that the tool is on PATH and asks it for its version.
func (e *External) Probe(ctx context.Context) Availability {
	av := Availability{Variant: core.VariantExternal}
	path, err := e.look(e.Tool)
	if err != nil {
		av.Reason = fmt.Sprintf("%s not found on PATH", e.Tool)
		return av
	}
	av.Available = true

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(vctx, path, "--version").Output()
	if err == nil {
		av.Version = strings.TrimSpace(string(out))
	}
	return av
}

// Run invokes the tool once. A missing tool is BACKEND_UNAVAILABLE; a
// nonzero exit, a timeout, or an output whose page count differs from the
// input is BACKEND_EXECUTION_FAILURE.
func (e *External) Run(ctx context.Context, in, out string, opts ExternalOptions) error {
	const op = "running external recognizer"
	path, err := e.look(e.Tool)
	if err != nil {
		return core.NewError(core.CodeBackendMissing, op, 0, err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := opts.Args(in, out)
	e.logger().Debug("starting external tool", "tool", path, "args", args)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(rctx, path, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return core.NewError(core.CodeBackendExecution, op, 0, fmt.Errorf("%w: %s", err, tail(stderr.String())))
	}
	e.logger().Debug("external tool finished", "elapsed", time.Since(start).Round(time.Millisecond))

	want, err := api.PageCountFile(in)
	if err != nil {
		return core.NewError(core.CodeBackendExecution, op, 0, fmt.Errorf("counting input pages: %w", err))
	}
	got, err := api.PageCountFile(out)
	if err != nil {
		return core.NewError(core.CodeBackendExecution, op, 0, fmt.Errorf("reading tool output: %w", err))
	}
	if got != want {
		return core.NewError(core.CodeBackendExecution, op, 0, fmt.Errorf("tool produced %d pages, want %d", got, want))
	}
	return nil
}

func (e *External) look(tool string) (string, error) {
	if e.lookPath != nil {
		return e.lookPath(tool)
	}
	return exec.LookPath(tool)
}

func (e *External) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
