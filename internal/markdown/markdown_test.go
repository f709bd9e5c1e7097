// ABOUTME: Tests for markdown rendering
// ABOUTME: Checks headings, GFM tables and script stripping

package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Heading(t *testing.T) {
	out, err := New().Render([]byte("# Title"))
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
}

func TestRender_GFMTable(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	out, err := New().Render([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>1</td>")
}

func TestRender_SanitizesScripts(t *testing.T) {
	src := "hello\n\n<script>alert(1)</script>\n\n<a href=\"javascript:alert(1)\">x</a>"
	out, err := New().Render([]byte(src))
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}

func TestRender_UnsanitizedPassesHTMLThrough(t *testing.T) {
	src := "<div class=\"note\">raw</div>"
	out, err := New(WithSanitize(false)).Render([]byte(src))
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `<div class="note">raw</div>`), "got %q", out)
}

func TestRender_Empty(t *testing.T) {
	out, err := New().Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
