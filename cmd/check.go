package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/crawl"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the session by requesting the first page's metadata",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addDocumentFlags(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	doc, err := cfg.Target()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	return checkSession(cmd.Context(), client, doc, cmd.OutOrStdout())
}

// metadataSource is satisfied by *fetch.Client.
type metadataSource interface {
	core.PageSource
	LocatorField() string
}

// checkSession requests the first page and reports whether it carries an
// image locator.
func checkSession(ctx context.Context, src metadataSource, doc core.Document, out io.Writer) error {
	page := doc.First()
	fmt.Fprintf(out, "Checking document %s (view %q), page %d\n", doc.ID, doc.ViewID, page)

	meta, err := src.FetchPageMetadata(ctx, doc, page)
	if err != nil {
		if crawl.IsAuthFailure(err) {
			return fmt.Errorf("authentication failed: %w\ncopy fresh cookies from your browser into the session file", err)
		}
		return fmt.Errorf("page %d unavailable: %w", page, err)
	}
	loc, ok := meta.ImageLocator(src.LocatorField())
	if !ok {
		return fmt.Errorf("page %d metadata has no %q field; the viewer may have changed", page, src.LocatorField())
	}
	if len(loc) > 50 {
		loc = loc[:50] + "..."
	}
	fmt.Fprintln(out, "✓ Authentication successful")
	fmt.Fprintf(out, "  image URL: %s\n", loc)
	return nil
}
