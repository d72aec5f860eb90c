package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc/internal/cmd/build"
)

func TestRunWatch_InitialCompileAndShutdown(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	output := filepath.Join(dir, "doc.html")
	require.NoError(t, os.WriteFile(input, []byte("#title: Watched\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &build.Params{Input: input, Output: output}, true)
	}()

	require.Eventually(t, func() bool {
		html, err := os.ReadFile(output)
		return err == nil && strings.Contains(string(html), "<h1>Watched</h1>")
	}, 5*time.Second, 10*time.Millisecond, "initial compile should produce output")

	cancel()
	require.NoError(t, <-done)
}

func TestRunWatch_RecompilesOnWrite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	output := filepath.Join(dir, "doc.html")
	require.NoError(t, os.WriteFile(input, []byte("#title: First\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &build.Params{Input: input, Output: output}, true)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(output)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(input, []byte("#title: Second\n"), 0644))

	require.Eventually(t, func() bool {
		html, err := os.ReadFile(output)
		return err == nil && strings.Contains(string(html), "Second")
	}, 5*time.Second, 10*time.Millisecond, "a write to the input should trigger a rebuild")

	cancel()
	require.NoError(t, <-done)
}

func TestRunWatch_ErrorsDoNotStopTheWatch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	output := filepath.Join(dir, "doc.html")
	require.NoError(t, os.WriteFile(input, []byte("#p: [#broken\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &build.Params{Input: input, Output: output}, true)
	}()

	// The initial compile fails. Keep rewriting the fixed document until
	// the loop picks a write up and the output appears.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(input, []byte("#title: Fixed\n"), 0644)
		html, err := os.ReadFile(output)
		return err == nil && strings.Contains(string(html), "Fixed")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunWatch_BadOptionsFailFast(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdoc")
	require.NoError(t, os.WriteFile(input, []byte("#title: X\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "picodoc.yaml"),
		[]byte("filters:\n  timeout: soon\n"), 0644))

	err := runWatch(context.Background(), &build.Params{Input: input}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewCmdWatch_Flags(t *testing.T) {
	cmd := NewCmdWatch()

	assert.Equal(t, "watch <input.pdoc>", cmd.Use)

	for _, name := range []string{"output", "env", "css", "js", "meta", "config", "filter-path", "filter-timeout"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}
