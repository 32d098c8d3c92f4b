package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// template is written by "folioscan init". Cookie values come from the
// browser's developer tools after opening the document and completing any
// email verification.
const template = `# folioscan session file
#
# 1. Open the document in your browser and complete any verification.
# 2. Open developer tools (F12) > Application (Chrome) or Storage (Firefox) > Cookies.
# 3. Copy the values of _v_, _dss_ and _us_ below, plus any other cookie that looks relevant.

cookies:
  - name: _v_
    value: ` + Placeholder + `
  - name: _dss_
    value: ` + Placeholder + `
  - name: _us_
    value: ` + Placeholder + `

# csrf_token: copy the X-CSRF-Token request header if the viewer requires it
# user_agent: override the browser user agent sent with every request

document:
  url: https://docsend.com/view/YOUR_DOCUMENT_ID/d/YOUR_VIEW_ID
  name: Your Document Name
  start_page: 1
  end_page: 10

work_dir: ` + DefaultWorkDir + `
output_dir: ` + DefaultOutputDir + `

acquire:
  cooldown: 1s
  timeout: 30s
  resume: false

compile:
  variant: none        # none, embedded or external
  language: eng
  margin_mm: 2
  transcript: false
  external_tool: ocrmypdf
  external_timeout: 10m
  external:
    optimize: 1
    oversample: 300
    deskew: true
    output_type: pdf
    rotate_pages: true
    force_ocr: true
`

// WriteTemplate writes the session template to path. It refuses to replace
// an existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if path == "" {
		path = DefaultFile
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	// 0600: the file holds session cookies.
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}
	return nil
}
