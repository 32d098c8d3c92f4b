// Package compile assembles stored pages into one PDF, applying the
// requested text-recognition variant and falling back through cheaper
// variants when a backend is missing or fails.
//
// The External variant degrades at document granularity: it either
// replaces the whole PDF or contributes nothing. The Embedded variant
// degrades per page: a page it cannot recognize is kept image-only.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/normalize"
	"github.com/gaurav-prasanna/folioscan/core/ocr"
	"github.com/gaurav-prasanna/folioscan/core/output"
	"github.com/gaurav-prasanna/folioscan/core/render"
)

// Pipeline compiles a page store into a PDF.
type Pipeline struct {
	Store      core.PageReader
	Recognizer ocr.Recognizer // nil when the embedded engine is not built in
	External   ocr.Runner     // nil when no external tool is configured
	Margin     float64        // points; negative selects render.DefaultMargin
	Logger     *slog.Logger
	Clock      func() time.Time

	// Transcript writes a Markdown transcript and a word index next to the
	// PDF whenever the embedded engine recognized at least one page.
	Transcript bool
}

// New returns a Pipeline over store with the default margin.
func New(store core.PageReader) *Pipeline {
	return &Pipeline{Store: store, Margin: render.DefaultMargin}
}

// Request describes one compilation.
type Request struct {
	Variant         core.Variant
	OutputPath      string
	Title           string
	ExternalOptions ocr.ExternalOptions
}

// PageOutcome records the variant applied to one page.
type PageOutcome struct {
	Index   int          `yaml:"index"`
	Variant core.Variant `yaml:"variant"`
	Words   int          `yaml:"words,omitempty"`
	Err     string       `yaml:"error,omitempty"`
}

// TierAttempt records one attempt at a variant.
type TierAttempt struct {
	Variant   core.Variant  `yaml:"variant"`
	Options   string        `yaml:"options,omitempty"` // "full" or "minimal" for External
	Available bool          `yaml:"available"`
	Err       string        `yaml:"error,omitempty"`
	Elapsed   time.Duration `yaml:"elapsed"`
}

// Result is the decision report of one compilation.
type Result struct {
	RunID      string        `yaml:"run_id"`
	Output     string        `yaml:"output"`
	Requested  core.Variant  `yaml:"requested"`
	Applied    core.Variant  `yaml:"applied"`
	Pages      []PageOutcome `yaml:"pages"`
	Tiers      []TierAttempt `yaml:"tiers"`
	Skipped    []int         `yaml:"skipped,omitempty"`
	Sidecars   []string      `yaml:"sidecars,omitempty"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
}

// Compile builds req.OutputPath from the store. It fails with
// core.ErrNothingToCompile, creating no file, when the store is empty.
func (p *Pipeline) Compile(ctx context.Context, req Request) (*Result, error) {
	if req.OutputPath == "" {
		return nil, errors.New("output path is required")
	}
	if p.Store == nil || !p.Store.Exists() {
		return nil, core.ErrNothingToCompile
	}

	created := p.now()
	res := &Result{
		RunID:     uuid.NewString(),
		Output:    req.OutputPath,
		Requested: req.Variant,
		StartedAt: created,
	}
	log := p.logger().With("run_id", res.RunID, "output", req.OutputPath)
	log.Info("compiling", "requested", req.Variant)

	for _, v := range ocr.Plan(req.Variant) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var done bool
		var err error
		switch v {
		case core.VariantExternal:
			done, err = p.tryExternal(ctx, log, req, created, res)
		case core.VariantEmbedded:
			done, err = p.tryEmbedded(ctx, log, req, created, res)
		default:
			err = p.build(ctx, log, req, created, res, false, req.OutputPath)
			done = err == nil
			if done {
				res.Applied = core.VariantNone
			}
		}
		if err != nil {
			return res, err
		}
		if done {
			removeStaleSidecars(log, req.OutputPath, res.Sidecars)
			res.FinishedAt = p.now()
			log.Info("compiled", "applied", res.Applied, "pages", len(res.Pages), "skipped", len(res.Skipped))
			return res, nil
		}
	}
	return res, errors.New("no recognition variant could be applied")
}

// tryExternal builds an image-only PDF, hands it to the external tool and
// moves the tool's output into place. Tool failures are absorbed: the
// caller moves on to the next tier.
func (p *Pipeline) tryExternal(ctx context.Context, log *slog.Logger, req Request, created time.Time, res *Result) (bool, error) {
	if p.External == nil {
		res.Tiers = append(res.Tiers, TierAttempt{Variant: core.VariantExternal, Err: "not configured"})
		return false, nil
	}
	av := p.External.Probe(ctx)
	if !av.Available {
		log.Warn("external recognizer unavailable", "reason", av.Reason)
		res.Tiers = append(res.Tiers, TierAttempt{Variant: core.VariantExternal, Err: av.Reason})
		return false, nil
	}

	work, err := os.MkdirTemp(filepath.Dir(req.OutputPath), ".folioscan-external-*")
	if err != nil {
		return false, fmt.Errorf("creating external work dir: %w", err)
	}
	defer os.RemoveAll(work)

	in := filepath.Join(work, "image-only.pdf")
	draft := *res
	if err := p.build(ctx, log, req, created, &draft, false, in); err != nil {
		return false, err
	}

	attempts := []struct {
		name string
		opts ocr.ExternalOptions
	}{
		{"full", req.ExternalOptions},
		{"minimal", req.ExternalOptions.Minimal()},
	}
	for i, a := range attempts {
		out := filepath.Join(work, fmt.Sprintf("ocr-%d.pdf", i))
		start := time.Now()
		err := p.External.Run(ctx, in, out, a.opts)
		attempt := TierAttempt{Variant: core.VariantExternal, Options: a.name, Available: true, Elapsed: time.Since(start)}
		if err == nil {
			if err := output.MoveFile(out, req.OutputPath); err != nil {
				return false, fmt.Errorf("moving external output into place: %w", err)
			}
			res.Tiers = append(res.Tiers, attempt)
			res.Pages = draft.Pages
			for j := range res.Pages {
				res.Pages[j].Variant = core.VariantExternal
			}
			res.Skipped = draft.Skipped
			res.Applied = core.VariantExternal
			return true, nil
		}
		attempt.Err = err.Error()
		res.Tiers = append(res.Tiers, attempt)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Warn("external recognizer failed", "options", a.name, "error", err)
		if core.CodeOf(err) == core.CodeBackendMissing {
			break
		}
	}
	return false, nil
}

func (p *Pipeline) tryEmbedded(ctx context.Context, log *slog.Logger, req Request, created time.Time, res *Result) (bool, error) {
	if p.Recognizer == nil {
		res.Tiers = append(res.Tiers, TierAttempt{Variant: core.VariantEmbedded, Err: "not configured"})
		return false, nil
	}
	av := p.Recognizer.Probe(ctx)
	if !av.Available {
		log.Warn("embedded recognizer unavailable", "reason", av.Reason)
		res.Tiers = append(res.Tiers, TierAttempt{Variant: core.VariantEmbedded, Err: av.Reason})
		return false, nil
	}
	if err := p.build(ctx, log, req, created, res, true, req.OutputPath); err != nil {
		return false, err
	}
	res.Applied = core.VariantEmbedded
	return true, nil
}

// build renders every stored page in index order into path. With recognize
// set, each page goes through the embedded engine first; a page it fails
// on is drawn without text.
func (p *Pipeline) build(ctx context.Context, log *slog.Logger, req Request, created time.Time, res *Result, recognize bool, path string) error {
	start := time.Now()
	variant := core.VariantNone
	if recognize {
		variant = core.VariantEmbedded
	}

	doc := render.NewDocument(render.DocumentOptions{Margin: p.Margin, Created: created, Title: req.Title})
	var transcript *render.Transcript
	var words *render.WordIndex
	if recognize && p.Transcript {
		transcript = render.NewTranscript(req.Title)
		words = render.NewWordIndex(req.Title)
	}
	normalizer := normalize.New()

	var pages []PageOutcome
	var skipped []int
	recognized := 0
	for page, err := range p.Store.ListOrdered(ctx) {
		if err != nil {
			if core.CodeOf(err) == core.CodeImageDecode {
				log.Warn("skipping undecodable page", "page", page.Index, "error", err)
				skipped = append(skipped, page.Index)
				continue
			}
			return fmt.Errorf("reading page store: %w", err)
		}

		outcome := PageOutcome{Index: page.Index, Variant: core.VariantNone}
		var rec ocr.Recognition
		if recognize {
			rec, err = p.Recognizer.Recognize(ctx, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("page recognition failed, keeping image only", "page", page.Index, "error", err)
				outcome.Err = err.Error()
				rec = ocr.Recognition{}
			} else {
				outcome.Variant = core.VariantEmbedded
				outcome.Words = len(rec.Tokens)
				recognized++
			}
		}

		c, err := doc.AddPage(page, rec.Tokens)
		if err != nil {
			if core.CodeOf(err) == core.CodeImageDecode {
				log.Warn("skipping undecodable page", "page", page.Index, "error", err)
				skipped = append(skipped, page.Index)
				continue
			}
			return err
		}
		pages = append(pages, outcome)
		log.Debug("page rendered", "page", page.Index, "variant", outcome.Variant, "words", outcome.Words)

		if transcript != nil {
			words.Add(page.Index, outcome.Variant, c, rec.Tokens)
			md := ""
			if rec.HOCR != "" {
				if md, err = normalizer.Normalize(rec.HOCR); err != nil {
					log.Warn("transcript conversion failed", "page", page.Index, "error", err)
					md = ""
				}
			}
			transcript.Add(page.Index, md)
		}
	}
	if len(pages) == 0 {
		return core.ErrNothingToCompile
	}

	if err := output.WriteWith(path, doc.Output); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	res.Pages = pages
	res.Skipped = skipped
	if path == req.OutputPath {
		res.Tiers = append(res.Tiers, TierAttempt{Variant: variant, Available: true, Elapsed: time.Since(start)})
	}

	if transcript != nil && recognized > 0 {
		if err := p.writeSidecars(req.OutputPath, transcript, words, res); err != nil {
			log.Warn("writing transcript failed", "error", err)
		}
	}
	return nil
}

func (p *Pipeline) writeSidecars(pdfPath string, transcript *render.Transcript, words *render.WordIndex, res *Result) error {
	mdPath := output.Sidecar(pdfPath, transcript.Extension())
	if err := output.WriteFile(mdPath, transcript.Render()); err != nil {
		return err
	}
	res.Sidecars = append(res.Sidecars, mdPath)

	data, err := words.Render()
	if err != nil {
		return err
	}
	jsonPath := output.Sidecar(pdfPath, words.Extension())
	if err := output.WriteFile(jsonPath, data); err != nil {
		return err
	}
	res.Sidecars = append(res.Sidecars, jsonPath)
	return nil
}

// removeStaleSidecars deletes transcript files next to pdfPath that this
// run did not write, so they never describe a different PDF.
func removeStaleSidecars(log *slog.Logger, pdfPath string, written []string) {
	for _, ext := range []string{render.NewTranscript("").Extension(), render.NewWordIndex("").Extension()} {
		path := output.Sidecar(pdfPath, ext)
		if slices.Contains(written, path) {
			continue
		}
		if err := os.Remove(path); err == nil {
			log.Info("removed stale sidecar", "path", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("removing stale sidecar failed", "path", path, "error", err)
		}
	}
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
