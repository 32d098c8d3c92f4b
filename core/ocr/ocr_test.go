package ocr_test

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/ocr"
	"github.com/gaurav-prasanna/folioscan/core/render"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		in   core.Variant
		want []core.Variant
	}{
		{core.VariantExternal, []core.Variant{core.VariantExternal, core.VariantEmbedded, core.VariantNone}},
		{core.VariantEmbedded, []core.Variant{core.VariantEmbedded, core.VariantNone}},
		{core.VariantNone, []core.Variant{core.VariantNone}},
	}
	for _, tt := range tests {
		if got := ocr.Plan(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Plan(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExternalOptions_Args(t *testing.T) {
	opts := ocr.ExternalOptions{
		Optimize: 3, Oversample: 400, Deskew: true, Clean: true, Language: "eng+deu",
		OutputType: "pdfa", RotatePages: true, ForceOCR: true, JPEGQuality: 90, PNGQuality: 80,
	}
	got := strings.Join(opts.Args("in.pdf", "out.pdf"), " ")
	want := "--optimize 3 --oversample 400 --deskew --clean -l eng+deu --output-type pdfa --rotate-pages --force-ocr --jpeg-quality 90 --png-quality 80 in.pdf out.pdf"
	if got != want {
		t.Errorf("Args() =\n  %s\nwant\n  %s", got, want)
	}
}

func TestExternalOptions_Minimal(t *testing.T) {
	full := ocr.DefaultExternalOptions()
	full.Language = "fra"
	minimal := full.Minimal()
	if got := strings.Join(minimal.Args("a", "b"), " "); got != "-l fra --output-type pdf a b" {
		t.Errorf("Minimal().Args() = %q", got)
	}
}

func TestExternalOptions_Validate(t *testing.T) {
	if err := ocr.DefaultExternalOptions().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	bad := []ocr.ExternalOptions{
		{Optimize: 4},
		{JPEGQuality: 101},
		{PNGQuality: -1},
		{OutputType: "docx"},
	}
	for _, o := range bad {
		if err := o.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", o)
		}
	}
}

func TestExternal_MissingTool(t *testing.T) {
	ext := ocr.NewExternal("folioscan-no-such-tool", time.Second)
	av := ext.Probe(context.Background())
	if av.Available || av.Variant != core.VariantExternal || av.Reason == "" {
		t.Errorf("Probe() = %+v, want unavailable with a reason", av)
	}
	err := ext.Run(context.Background(), "in.pdf", "out.pdf", ocr.ExternalOptions{})
	if core.CodeOf(err) != core.CodeBackendMissing {
		t.Errorf("Run() error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

// fakeTool writes an executable shell script standing in for the tool.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-ocr")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func imageOnlyPDF(t *testing.T, pages int) string {
	t.Helper()
	doc := render.NewDocument(render.DocumentOptions{})
	for i := 1; i <= pages; i++ {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 30, 40)), nil); err != nil {
			t.Fatal(err)
		}
		if _, err := doc.AddPage(core.Page{Index: i, Image: buf.Bytes()}, nil); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "in.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := doc.Output(f); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExternal_RunCopiesOutput(t *testing.T) {
	tool := fakeTool(t, `while [ $# -gt 2 ]; do shift; done; cp "$1" "$2"`)
	in := imageOnlyPDF(t, 2)
	out := filepath.Join(t.TempDir(), "out.pdf")

	ext := ocr.NewExternal(tool, 30*time.Second)
	if err := ext.Run(context.Background(), in, out, ocr.DefaultExternalOptions()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestExternal_RunNonzeroExit(t *testing.T) {
	tool := fakeTool(t, `echo "tesseract: language pack missing" >&2; exit 3`)
	in := imageOnlyPDF(t, 1)
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := ocr.NewExternal(tool, 30*time.Second).Run(context.Background(), in, out, ocr.ExternalOptions{})
	if core.CodeOf(err) != core.CodeBackendExecution {
		t.Fatalf("Run() error = %v, want BACKEND_EXECUTION_FAILURE", err)
	}
	if !strings.Contains(err.Error(), "language pack missing") {
		t.Errorf("Run() error = %v, want stderr included", err)
	}
}

func TestExternal_RunPageCountMismatch(t *testing.T) {
	one := imageOnlyPDF(t, 1)
	tool := fakeTool(t, `while [ $# -gt 2 ]; do shift; done; cp "`+one+`" "$2"`)
	in := imageOnlyPDF(t, 3)
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := ocr.NewExternal(tool, 30*time.Second).Run(context.Background(), in, out, ocr.ExternalOptions{})
	if core.CodeOf(err) != core.CodeBackendExecution {
		t.Fatalf("Run() error = %v, want BACKEND_EXECUTION_FAILURE", err)
	}
}

func TestExternal_RunTimeout(t *testing.T) {
	tool := fakeTool(t, `exec sleep 5`)
	in := imageOnlyPDF(t, 1)
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := ocr.NewExternal(tool, 100*time.Millisecond).Run(context.Background(), in, out, ocr.ExternalOptions{})
	if core.CodeOf(err) != core.CodeBackendExecution {
		t.Fatalf("Run() error = %v, want BACKEND_EXECUTION_FAILURE", err)
	}
}

func TestProbeAll_NilBackends(t *testing.T) {
	got := ocr.ProbeAll(context.Background(), nil, nil)
	if len(got) != 3 || !got[0].Available || got[1].Available || got[2].Available {
		t.Errorf("ProbeAll() = %+v", got)
	}
}
