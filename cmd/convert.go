package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Acquire a document and compile it into a PDF",
	Long: `Convert acquires every page of a document and compiles the result into a
PDF in one go. If acquisition stops early, the pages that did arrive are
still compiled and the acquisition error is reported afterwards.

Examples:
  folioscan convert --url https://docsend.com/view/abc/d/xyz --name "Series A Deck"
  folioscan convert --url https://docsend.com/view/abc --end_page 20 --ocr external
  folioscan convert --config deal.yaml --ocr embedded --transcript`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	addDocumentFlags(convertCmd)
	addCompileFlags(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	doc, st, res, err := acquire(ctx, cfg, out)
	if err != nil {
		return err
	}
	acqErr := acquireError(res)
	if ctx.Err() != nil {
		return acqErr
	}
	if !st.Exists() {
		if acqErr != nil {
			return acqErr
		}
		return fmt.Errorf("%w for %s", errNoPages, doc.Name)
	}

	if _, err := compileStore(ctx, cfg, st, doc.Name, out); err != nil {
		return err
	}
	return acqErr
}
