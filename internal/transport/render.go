package transport

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ReportRenderer turns model markdown into HTML that is safe to embed in a page.
// Model output is untrusted, so every rendering goes through the sanitizer.
type ReportRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewReportRenderer creates a renderer with GitHub flavored markdown and the UGC policy
func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts markdown to sanitized HTML
func (r *ReportRenderer) Render(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}
