package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/config"
)

var flagForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a session file template",
	Long: `Init writes a session file with placeholders for the browser cookies,
the document URL and the compile settings. Fill it in, then run
"folioscan check" to verify the cookies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteTemplate(path, flagForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Written: %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit it with your cookie values, then run: folioscan check")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing file")
}
