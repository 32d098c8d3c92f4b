package cmd

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <pdf>...",
	Short: "Print the page count and size of compiled PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			n, err := api.PageCountFile(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, %.2f MB\n", path, n, float64(info.Size())/(1024*1024))
		}
		if failed > 0 {
			return fmt.Errorf("%d/%d files could not be read", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
