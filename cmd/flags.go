package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/folioscan/config"
)

// Document and acquisition flags, shared by acquire, check and convert.
var (
	flagURL       string
	flagName      string
	flagStartPage int
	flagEndPage   int
	flagCooldown  time.Duration
	flagResume    bool
)

// Compilation flags, shared by compile and convert.
var (
	flagVariant    string
	flagLanguage   string
	flagMarginMM   float64
	flagTranscript bool
	flagTool       string
)

func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagURL, "url", "", "Viewer URL, e.g. https://docsend.com/view/<id>/d/<view>")
	cmd.Flags().StringVar(&flagName, "name", "", "Document name used for directories and output files")
	cmd.Flags().IntVar(&flagStartPage, "start_page", 1, "First page to request")
	cmd.Flags().IntVar(&flagEndPage, "end_page", 0, "Last page to request (0: until the viewer runs out)")
	cmd.Flags().DurationVar(&flagCooldown, "cooldown", time.Second, "Pause between page requests")
	cmd.Flags().BoolVar(&flagResume, "resume", false, "Continue after the highest page already stored")
}

func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagVariant, "ocr", "", "Text recognition: none, embedded or external")
	cmd.Flags().StringVar(&flagLanguage, "language", "", "Recognition language(s), e.g. eng or eng+deu")
	cmd.Flags().Float64Var(&flagMarginMM, "margin_mm", 2, "Page margin in millimetres")
	cmd.Flags().BoolVar(&flagTranscript, "transcript", false, "Write a Markdown transcript and word index next to the PDF")
	cmd.Flags().StringVar(&flagTool, "external_tool", "", "External recognition tool (default: ocrmypdf)")
}

// applyDocumentFlags copies the flags the user actually set over cfg.
func applyDocumentFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("url") {
		cfg.Document.URL = flagURL
	}
	if f.Changed("name") {
		cfg.Document.Name = flagName
	}
	if f.Changed("start_page") {
		cfg.Document.StartPage = flagStartPage
	}
	if f.Changed("end_page") {
		cfg.Document.EndPage = flagEndPage
	}
	if f.Changed("cooldown") {
		cfg.Acquire.Cooldown = flagCooldown
	}
	if f.Changed("resume") {
		cfg.Acquire.Resume = flagResume
	}
}

func applyCompileFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("ocr") {
		cfg.Compile.Variant = flagVariant
	}
	if f.Changed("language") {
		cfg.Compile.Language = flagLanguage
	}
	if f.Changed("margin_mm") {
		cfg.Compile.MarginMM = flagMarginMM
	}
	if f.Changed("transcript") {
		cfg.Compile.Transcript = flagTranscript
	}
	if f.Changed("external_tool") {
		cfg.Compile.ExternalTool = flagTool
	}
}
