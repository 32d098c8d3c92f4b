package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/core/ocr"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show which text recognition engines are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		embedded, external := backends(cfg)
		printAvailability(cmd.OutOrStdout(), ocr.ProbeAll(cmd.Context(), embedded, external))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	addCompileFlags(probeCmd)
}

func printAvailability(w io.Writer, all []ocr.Availability) {
	for _, av := range all {
		mark := "✓"
		if !av.Available {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %-9s", mark, av.Variant)
		if av.Version != "" {
			line += " " + av.Version
		}
		if av.Reason != "" {
			line += " (" + av.Reason + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
