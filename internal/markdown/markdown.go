// ABOUTME: Markdown to HTML rendering for .md documents
// ABOUTME: goldmark with GFM extensions followed by an optional bluemonday sanitization pass

package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts raw markdown into an HTML fragment.
type Renderer interface {
	Render(raw []byte) (string, error)
}

// GoldmarkRenderer renders GitHub-flavored markdown.
// The goldmark instance is immutable after construction and safe to share.
type GoldmarkRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy // nil disables sanitization
}

// Option configures a GoldmarkRenderer.
type Option func(*GoldmarkRenderer)

// WithSanitize toggles the bluemonday UGC pass over rendered HTML.
func WithSanitize(enabled bool) Option {
	return func(r *GoldmarkRenderer) {
		if enabled {
			r.policy = bluemonday.UGCPolicy()
		} else {
			r.policy = nil
		}
	}
}

// New creates a renderer. Sanitization is on unless disabled with WithSanitize(false).
func New(opts ...Option) *GoldmarkRenderer {
	r := &GoldmarkRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Raw HTML is passed through; the sanitizer decides what survives
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render implements Renderer.
func (r *GoldmarkRenderer) Render(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(raw, &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	if r.policy == nil {
		return buf.String(), nil
	}
	return r.policy.SanitizeReader(&buf).String(), nil
}
