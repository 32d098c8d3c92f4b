package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/config"
	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/compile"
	"github.com/gaurav-prasanna/folioscan/core/ocr"
	"github.com/gaurav-prasanna/folioscan/core/ocr/tesseract"
	"github.com/gaurav-prasanna/folioscan/core/output"
	"github.com/gaurav-prasanna/folioscan/core/store"
)

const compileReportName = "compile.yaml"

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile acquired pages into a PDF",
	Long: `Compile assembles the pages stored for a document into a single PDF,
one page per image in page order. With --ocr embedded or --ocr external the
PDF gets an invisible text layer; when the requested engine is missing or
fails, compilation falls back to the next cheaper one.

Examples:
  folioscan compile --name "Series A Deck"
  folioscan compile --url https://docsend.com/view/abc/d/xyz
  folioscan compile --name "Series A Deck" --ocr external --language eng+deu
  folioscan compile --name "Series A Deck" --ocr embedded --transcript`,
	Args: cobra.NoArgs,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVar(&flagName, "name", "", "Document name (as used by acquire)")
	compileCmd.Flags().StringVar(&flagURL, "url", "", "Viewer URL of an acquired document, used when --name is not given")
	addCompileFlags(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCompile(); err != nil {
		return err
	}

	st, name, err := locateStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	_, err = compileStore(ctx, cfg, st, name, cmd.OutOrStdout())
	return err
}

// locateStore finds the page directory to compile. A configured name is
// used as is. Otherwise the work directory is searched for the acquire
// report of the configured document, since acquire may have named the
// directory after the viewer title.
func locateStore(cfg *config.Config) (*store.Store, string, error) {
	if name := cfg.Document.Name; name != "" {
		return store.New(cfg.StoreDir(name)), name, nil
	}
	doc, err := cfg.Target()
	if err != nil {
		return nil, "", errors.New("--name or --url is required to locate the acquired pages")
	}

	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("listing %s: %w", cfg.WorkDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		st := store.New(filepath.Join(cfg.WorkDir, e.Name()))
		var report acquireReport
		if err := st.ReadReport(acquireReportName, &report); err != nil {
			continue
		}
		if report.Document == doc.ID && report.Name != "" {
			slog.Debug("found acquired pages", "document", doc.ID, "store", st.Dir)
			return st, report.Name, nil
		}
	}
	return store.New(cfg.StoreDir(doc.ID)), doc.ID, nil
}

// compileStore runs the compilation pipeline over st and records the
// decision report in the store directory.
func compileStore(ctx context.Context, cfg *config.Config, st *store.Store, name string, out io.Writer) (*compile.Result, error) {
	variant, err := cfg.Variant()
	if err != nil {
		return nil, err
	}
	writer, err := output.New(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("initializing output writer: %w", err)
	}

	p := compile.New(st)
	p.Margin = cfg.Margin()
	p.Logger = slog.Default().With("document", name)
	p.Transcript = cfg.Compile.Transcript
	embedded, external := backends(cfg)
	p.Recognizer = embedded
	p.External = external

	req := compile.Request{
		Variant:         variant,
		OutputPath:      writer.PathFor(name, variant),
		Title:           name,
		ExternalOptions: cfg.ExternalOptions(),
	}
	res, err := p.Compile(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrNothingToCompile) {
			return res, fmt.Errorf("%w (looked in %s)", err, st.Dir)
		}
		return res, err
	}
	if err := st.WriteReport(compileReportName, res); err != nil {
		slog.Warn("writing compile report failed", "error", err)
	}

	fmt.Fprintf(out, "✓ Written: %s (%d pages, text layer: %s)\n", res.Output, len(res.Pages), res.Applied)
	if res.Applied != res.Requested {
		fmt.Fprintf(out, "  requested %s, fell back to %s; see %s\n", res.Requested, res.Applied, compileReportName)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "  skipped undecodable pages: %s\n", joinInts(res.Skipped))
	}
	for _, s := range res.Sidecars {
		fmt.Fprintf(out, "✓ Written: %s\n", s)
	}
	return res, nil
}

// backends builds the recognition engines from the configuration.
func backends(cfg *config.Config) (ocr.Recognizer, ocr.Runner) {
	embedded := tesseract.New(tesseract.ParseLanguages(cfg.Compile.Language)...)
	external := ocr.NewExternal(cfg.Compile.ExternalTool, cfg.Compile.ExternalTimeout)
	external.Logger = slog.Default()
	return embedded, external
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}
