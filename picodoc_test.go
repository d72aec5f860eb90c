package picodoc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc/eval"
	"github.com/picodoc-lang/picodoc/inject"
	"github.com/picodoc-lang/picodoc/parser"
)

func TestCompile(t *testing.T) {
	ctx := context.Background()

	t.Run("full pipeline", func(t *testing.T) {
		source := "#title: Greetings\n\nBody text.\n"

		html, err := Compile(ctx, source, "doc.pdoc")
		require.NoError(t, err)

		assert.Contains(t, html, "<!DOCTYPE html>")
		assert.Contains(t, html, "<h1>Greetings</h1>")
		assert.Contains(t, html, "<p>Body text.</p>")
	})

	t.Run("macro definitions expand", func(t *testing.T) {
		source := "[#set name=version : 3.0]\n\n#p: Release [#version].\n"

		html, err := Compile(ctx, source, "doc.pdoc")
		require.NoError(t, err)

		assert.Contains(t, html, "<p>Release 3.0.</p>")
	})

	t.Run("environment values", func(t *testing.T) {
		source := "#p: Version [#env.version], final.\n"

		html, err := Compile(ctx, source, "doc.pdoc", WithEnv(map[string]string{"version": "2.0"}))
		require.NoError(t, err)

		assert.Contains(t, html, "<p>Version 2.0, final.</p>")
	})

	t.Run("head injection", func(t *testing.T) {
		source := "#p: Hi.\n"

		html, err := Compile(ctx, source, "doc.pdoc",
			WithCSS("style.css"),
			WithJS("app.js"),
			WithMeta(inject.MetaTag{Name: "author", Content: "Ada"}),
		)
		require.NoError(t, err)

		assert.Contains(t, html, `<link rel="stylesheet" href="style.css">`)
		assert.Contains(t, html, `<script src="app.js"></script>`)
		assert.Contains(t, html, `<meta name="author" content="Ada">`)
		assert.Less(t, indexOf(html, "style.css"), indexOf(html, "</head>"))
	})

	t.Run("debug dump", func(t *testing.T) {
		var buf bytes.Buffer
		source := "#p: Hi.\n"

		_, err := Compile(ctx, source, "doc.pdoc", WithDebugWriter(&buf))
		require.NoError(t, err)

		dump := buf.String()
		assert.Contains(t, dump, "Document")
		assert.Contains(t, dump, "MacroCall #p")
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Compile(ctx, "#p: [#url link=x\n", "doc.pdoc")
		require.Error(t, err)

		var perr *parser.Error
		assert.True(t, errors.As(err, &perr))
	})

	t.Run("evaluation error", func(t *testing.T) {
		_, err := Compile(ctx, "#p: [#missing]\n", "doc.pdoc")
		require.Error(t, err)

		var eerr *eval.Error
		require.True(t, errors.As(err, &eerr))
		assert.Equal(t, eval.UndefinedMacro, eerr.Kind)
	})
}

func TestCompileFile(t *testing.T) {
	ctx := context.Background()

	t.Run("reads and compiles", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "doc.pdoc")
		require.NoError(t, os.WriteFile(path, []byte("#title: From disk\n"), 0644))

		html, err := CompileFile(ctx, path)
		require.NoError(t, err)
		assert.Contains(t, html, "<h1>From disk</h1>")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := CompileFile(ctx, filepath.Join(t.TempDir(), "absent.pdoc"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})

	t.Run("includes resolve beside the document", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "part.pdoc"), []byte("#p: Included.\n"), 0644))
		path := filepath.Join(dir, "doc.pdoc")
		require.NoError(t, os.WriteFile(path, []byte("#include file=part.pdoc\n"), 0644))

		html, err := CompileFile(ctx, path)
		require.NoError(t, err)
		assert.Contains(t, html, "<p>Included.</p>")
	})

	t.Run("filters discovered beside the document", func(t *testing.T) {
		dir := t.TempDir()
		filterDir := filepath.Join(dir, "filters")
		require.NoError(t, os.Mkdir(filterDir, 0755))
		script := "#!/bin/sh\nprintf '#p: from filter\\n'\n"
		require.NoError(t, os.WriteFile(filepath.Join(filterDir, "gen"), []byte(script), 0755))

		path := filepath.Join(dir, "doc.pdoc")
		require.NoError(t, os.WriteFile(path, []byte("#gen\n"), 0644))

		html, err := CompileFile(ctx, path)
		require.NoError(t, err)
		assert.Contains(t, html, "<p>from filter</p>")
	})
}

func indexOf(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}
