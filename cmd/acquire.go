package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/config"
	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/fetch"
	"github.com/gaurav-prasanna/folioscan/core/store"
	"github.com/gaurav-prasanna/folioscan/crawl"
)

const acquireReportName = "acquire.yaml"

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download page images into the work directory",
	Long: `Acquire requests pages one at a time, starting at --start_page, and
stores each image as page_NNNN.jpg under <work_dir>/<document name>/. It stops
at --end_page, when the viewer has no more pages, or at the first failure.

Examples:
  folioscan acquire --url https://docsend.com/view/abc/d/xyz --name "Series A Deck"
  folioscan acquire --resume`,
	Args: cobra.NoArgs,
	RunE: runAcquire,
}

func init() {
	rootCmd.AddCommand(acquireCmd)
	addDocumentFlags(acquireCmd)
}

// acquireReport is written next to the pages after every run.
type acquireReport struct {
	RunID      string       `yaml:"run_id"`
	Document   string       `yaml:"document"`
	ViewID     string       `yaml:"view_id,omitempty"`
	Name       string       `yaml:"name"`
	StartedAt  time.Time    `yaml:"started_at"`
	FinishedAt time.Time    `yaml:"finished_at"`
	Acquired   int          `yaml:"acquired"`
	First      int          `yaml:"first,omitempty"`
	Last       int          `yaml:"last,omitempty"`
	Next       int          `yaml:"next"`
	Reason     crawl.Reason `yaml:"reason"`
	Completed  bool         `yaml:"completed"`
	Error      string       `yaml:"error,omitempty"`
}

func runAcquire(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	_, _, res, err := acquire(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return acquireError(res)
}

// acquire resolves the document, runs the pagination controller and
// records the run. The returned error covers setup only; the outcome of the
// run itself is in the Result.
func acquire(ctx context.Context, cfg *config.Config, out io.Writer) (core.Document, *store.Store, crawl.Result, error) {
	doc, err := cfg.Target()
	if err != nil {
		return doc, nil, crawl.Result{}, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return doc, nil, crawl.Result{}, err
	}

	if doc.Name == "" {
		doc.Name = lookupName(ctx, client, doc)
	}
	st := store.New(cfg.StoreDir(doc.Name))
	log := slog.Default().With("document", doc.ID, "store", st.Dir)

	bar := newProgressBar(doc, out)
	ctrl := &crawl.Controller{
		Source:       client,
		Store:        st,
		Cooldown:     cfg.Acquire.Cooldown,
		Logger:       log,
		LocatorField: client.LocatorField(),
		Resume:       cfg.Acquire.Resume,
		OnPage: func(p core.Page) {
			bar.Describe(fmt.Sprintf("Page %d", p.Index))
			_ = bar.Add(1)
		},
	}

	report := acquireReport{
		RunID:     uuid.NewString(),
		Document:  doc.ID,
		ViewID:    doc.ViewID,
		Name:      doc.Name,
		StartedAt: time.Now().UTC(),
	}
	res := ctrl.Acquire(ctx, doc)
	_ = bar.Finish()

	report.FinishedAt = time.Now().UTC()
	report.Acquired, report.First, report.Last, report.Next = res.Acquired, res.First, res.Last, res.Next
	report.Reason, report.Completed = res.Reason, res.Reason.Completed()
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	if st.Exists() {
		if err := st.WriteReport(acquireReportName, report); err != nil {
			log.Warn("writing acquire report failed", "error", err)
		}
	}

	log.Info("acquisition finished", "run_id", report.RunID, "acquired", res.Acquired, "reason", res.Reason)
	fmt.Fprintf(out, "✓ Acquired %d page(s) into %s (%s)\n", res.Acquired, st.Dir, res.Reason)
	return doc, st, res, nil
}

// acquireError turns a failed run into a CLI error, adding guidance for
// stale credentials.
func acquireError(res crawl.Result) error {
	if res.Reason.Completed() {
		return nil
	}
	if res.Reason == crawl.AuthFailure {
		return fmt.Errorf("%w\nthe session cookies are stale: open the document in your browser, copy fresh cookies into the session file and rerun with --resume", res.Err)
	}
	if errors.Is(res.Err, crawl.ErrNotContiguous) {
		return fmt.Errorf("%w\nrerun with --resume to continue after the stored pages, or choose another --name", res.Err)
	}
	if res.Err != nil {
		return fmt.Errorf("acquisition stopped at page %d (%s): %w", res.Next, res.Reason, res.Err)
	}
	return fmt.Errorf("acquisition stopped at page %d (%s)", res.Next, res.Reason)
}

func newClient(cfg *config.Config) (*fetch.Client, error) {
	opts := []fetch.Option{fetch.WithTimeout(cfg.Acquire.Timeout)}
	if cfg.Acquire.TimezoneOffset != nil {
		opts = append(opts, fetch.WithTimezoneOffset(*cfg.Acquire.TimezoneOffset))
	}
	client, err := fetch.New(cfg.Session(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating session client: %w", err)
	}
	return client, nil
}

// lookupName falls back to the viewer page title, then to the document ID.
func lookupName(ctx context.Context, client *fetch.Client, doc core.Document) string {
	title, err := client.FetchTitle(ctx, doc)
	if err != nil {
		slog.Debug("no document title", "error", err)
		return doc.ID
	}
	if title = strings.TrimSpace(title); title == "" {
		return doc.ID
	}
	return title
}

func newProgressBar(doc core.Document, out io.Writer) *progressbar.ProgressBar {
	total := -1
	if doc.EndPage > 0 {
		total = doc.EndPage - doc.First() + 1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Downloading pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

// signalContext cancels on SIGINT or SIGTERM so pages already stored stay
// valid and the run report is still written.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var errNoPages = errors.New("no pages were acquired")
