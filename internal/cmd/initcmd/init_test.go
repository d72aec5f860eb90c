package initcmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc"
	"github.com/picodoc-lang/picodoc/internal/cmd/build"
	"github.com/picodoc-lang/picodoc/internal/config"
)

func TestScaffold_WritesProjectFiles(t *testing.T) {
	dir := t.TempDir()

	vals := projectValues{
		Title:    "Field Guide",
		Language: "en",
		Author:   "Ada Lovelace",
		Document: "index.pdoc",
	}
	require.NoError(t, scaffold(dir, vals))

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Field Guide", cfg.Env["project"])
	assert.Equal(t, "Ada Lovelace", cfg.Meta["author"])

	doc, err := os.ReadFile(filepath.Join(dir, "index.pdoc"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "#lang: en")
	assert.Contains(t, string(doc), "#title: Field Guide")
	assert.Contains(t, string(doc), "[#env.project]")
}

func TestScaffold_OmitsAuthorWhenEmpty(t *testing.T) {
	dir := t.TempDir()

	vals := projectValues{Title: "Notes", Language: "en", Document: "index.pdoc"}
	require.NoError(t, scaffold(dir, vals))

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Empty(t, cfg.Meta)
}

func TestStarterDocument_Compiles(t *testing.T) {
	vals := projectValues{
		Title:    "Field Guide",
		Language: "en",
		Document: "index.pdoc",
	}

	html, err := picodoc.Compile(context.Background(), starterDocument(vals), "index.pdoc",
		picodoc.WithEnv(map[string]string{"project": vals.Title}))
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="en">`)
	assert.Contains(t, html, "<h1>Field Guide</h1>")
	assert.Contains(t, html, "Welcome to Field Guide.")
	assert.Contains(t, html, "<h2>Next steps</h2>")
	assert.Contains(t, html, "<li>")
}

func TestStarterDocument_EscapesFormInput(t *testing.T) {
	vals := projectValues{
		Title:    `C# [sharp] \ notes`,
		Language: "en",
		Document: "index.pdoc",
	}

	html, err := picodoc.Compile(context.Background(), starterDocument(vals), "index.pdoc",
		picodoc.WithEnv(map[string]string{"project": vals.Title}))
	require.NoError(t, err)

	assert.Contains(t, html, `<h1>C# [sharp] \ notes</h1>`)
}

func TestScaffoldedProject_Builds(t *testing.T) {
	dir := t.TempDir()

	vals := projectValues{Title: "Field Guide", Language: "en", Document: "index.pdoc"}
	require.NoError(t, scaffold(dir, vals))

	// The same path the build command takes: config discovered next to
	// the input supplies the project env value.
	params := &build.Params{
		Input:  filepath.Join(dir, "index.pdoc"),
		Output: filepath.Join(dir, "index.html"),
	}
	require.NoError(t, build.Run(context.Background(), params))

	html, err := os.ReadFile(params.Output)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Field Guide</h1>")
	assert.Contains(t, string(html), "Welcome to Field Guide.")
}

func TestHTMLName(t *testing.T) {
	assert.Equal(t, "index.html", htmlName("index.pdoc"))
	assert.Equal(t, "docs/guide.html", htmlName("docs/guide.pdoc"))
}

func TestEscapeMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "My Project",
			expected: "My Project",
		},
		{
			name:     "hash escaped",
			input:    "C# notes",
			expected: `C\# notes`,
		},
		{
			name:     "brackets escaped",
			input:    "a [draft]",
			expected: `a \[draft\]`,
		},
		{
			name:     "backslash escaped",
			input:    `a\b`,
			expected: `a\\b`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeMarkup(tt.input))
		})
	}
}

func TestNewCmdInit_Flags(t *testing.T) {
	cmd := NewCmdInit()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	titleFlag := cmd.Flags().Lookup("title")
	require.NotNil(t, titleFlag)
	assert.Equal(t, "", titleFlag.DefValue)

	langFlag := cmd.Flags().Lookup("lang")
	require.NotNil(t, langFlag)
	assert.Equal(t, "", langFlag.DefValue)
}
