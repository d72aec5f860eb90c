package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc"
	"github.com/picodoc-lang/picodoc/inject"
)

// applyOptions collapses compile options so their merged result can be
// inspected.
func applyOptions(opts []picodoc.Option) picodoc.Options {
	var o picodoc.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func TestCompileOptions_Defaults(t *testing.T) {
	dir := t.TempDir()

	o := mustOptions(t, &Params{Input: filepath.Join(dir, "doc.pdoc")})

	assert.Empty(t, o.Env)
	assert.Empty(t, o.CSSFiles)
	assert.Equal(t, 5*time.Second, o.FilterTimeout)
	assert.Nil(t, o.DebugWriter)
}

func TestCompileOptions_MergesConfigUnderFlags(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `env:
  version: "1.0"
  project: Base
css:
  - base.css
meta:
  author: Ada Lovelace
filters:
  timeout: 250ms
`)

	p := &Params{
		Input:    filepath.Join(dir, "doc.pdoc"),
		EnvPairs: []string{"version=2.0"},
		CSS:      []string{"extra.css"},
	}
	o := mustOptions(t, p)

	assert.Equal(t, "2.0", o.Env["version"], "flag should override config")
	assert.Equal(t, "Base", o.Env["project"], "config value without a flag survives")
	assert.Equal(t, []string{"base.css", "extra.css"}, o.CSSFiles, "config entries come first")
	assert.Equal(t, []inject.MetaTag{{Name: "author", Content: "Ada Lovelace"}}, o.MetaTags)
	assert.Equal(t, 250*time.Millisecond, o.FilterTimeout)
}

func TestCompileOptions_FlagTimeoutBeatsConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "filters:\n  timeout: 250ms\n")

	p := &Params{
		Input:         filepath.Join(dir, "doc.pdoc"),
		FilterTimeout: time.Second,
	}
	o := mustOptions(t, p)

	assert.Equal(t, time.Second, o.FilterTimeout)
}

func TestCompileOptions_MetaPairsAppend(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "meta:\n  author: Ada Lovelace\n")

	p := &Params{
		Input:     filepath.Join(dir, "doc.pdoc"),
		MetaPairs: []string{"robots=noindex"},
	}
	o := mustOptions(t, p)

	require.Len(t, o.MetaTags, 2)
	assert.Equal(t, inject.MetaTag{Name: "author", Content: "Ada Lovelace"}, o.MetaTags[0])
	assert.Equal(t, inject.MetaTag{Name: "robots", Content: "noindex"}, o.MetaTags[1])
}

func TestCompileOptions_Debug(t *testing.T) {
	dir := t.TempDir()

	o := mustOptions(t, &Params{Input: filepath.Join(dir, "doc.pdoc"), Debug: true})

	assert.NotNil(t, o.DebugWriter)
}

func TestCompileOptions_Verbose(t *testing.T) {
	dir := t.TempDir()

	o := mustOptions(t, &Params{Input: filepath.Join(dir, "doc.pdoc"), Verbose: true})

	assert.NotNil(t, o.Logger)
}

func TestCompileOptions_BadEnvPair(t *testing.T) {
	dir := t.TempDir()

	_, err := CompileOptions(&Params{
		Input:    filepath.Join(dir, "doc.pdoc"),
		EnvPairs: []string{"noequals"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid env format")
}

func TestCompileOptions_BadConfigTimeout(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "filters:\n  timeout: soon\n")

	_, err := CompileOptions(&Params{Input: filepath.Join(dir, "doc.pdoc")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRun_WritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	output := filepath.Join(dir, "doc.html")
	require.NoError(t, os.WriteFile(input, []byte("#title: Built\n"), 0644))

	p := &Params{Input: input, Output: output}
	require.NoError(t, Run(context.Background(), p))

	html, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Built</h1>")
}

func TestRun_CompileErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	require.NoError(t, os.WriteFile(input, []byte("#p: [#broken\n"), 0644))

	err := Run(context.Background(), &Params{Input: input})
	require.Error(t, err)
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantVal string
		wantErr bool
	}{
		{name: "simple pair", raw: "version=2.0", wantKey: "version", wantVal: "2.0"},
		{name: "value keeps extra equals", raw: "q=a=b", wantKey: "q", wantVal: "a=b"},
		{name: "empty value allowed", raw: "flag=", wantKey: "flag", wantVal: ""},
		{name: "missing equals", raw: "nope", wantErr: true},
		{name: "empty name", raw: "=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, val, err := splitPair(tt.raw, "env")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantVal, val)
		})
	}
}

func TestNewCmdBuild_Flags(t *testing.T) {
	cmd := NewCmdBuild()

	assert.Equal(t, "build <input.pdoc>", cmd.Use)
	assert.Contains(t, cmd.Aliases, "compile")

	for _, name := range []string{
		"output", "env", "css", "js", "meta", "config",
		"filter-path", "filter-timeout", "debug",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}

func mustOptions(t *testing.T, p *Params) picodoc.Options {
	t.Helper()
	opts, err := CompileOptions(p)
	require.NoError(t, err)
	return applyOptions(opts)
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "picodoc.yaml"), []byte(content), 0644))
}
