package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, path, script string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

const catScript = "#!/bin/sh\ncat\n"

func TestRegistryDiscovery(t *testing.T) {
	t.Run("filters directory beside document", func(t *testing.T) {
		dir := t.TempDir()
		writeScript(t, filepath.Join(dir, "filters", "chart"), catScript)
		reg := NewRegistry(dir)
		path, ok := reg.Find("chart")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "filters", "chart"), path)
	})

	t.Run("configured search path", func(t *testing.T) {
		docDir := t.TempDir()
		toolDir := t.TempDir()
		writeScript(t, filepath.Join(toolDir, "chart"), catScript)
		reg := NewRegistry(docDir, toolDir)
		path, ok := reg.Find("chart")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(toolDir, "chart"), path)
	})

	t.Run("local directory wins", func(t *testing.T) {
		docDir := t.TempDir()
		toolDir := t.TempDir()
		writeScript(t, filepath.Join(docDir, "filters", "chart"), catScript)
		writeScript(t, filepath.Join(toolDir, "chart"), catScript)
		reg := NewRegistry(docDir, toolDir)
		path, ok := reg.Find("chart")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(docDir, "filters", "chart"), path)
	})

	t.Run("prefixed executable on PATH", func(t *testing.T) {
		binDir := t.TempDir()
		writeScript(t, filepath.Join(binDir, "picodoc-date"), catScript)
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
		reg := NewRegistry(t.TempDir())
		path, ok := reg.Find("date")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(binDir, "picodoc-date"), path)
	})

	t.Run("non executable file ignored", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "filters", "chart")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(catScript), 0o644))
		reg := NewRegistry(dir)
		_, ok := reg.Find("chart")
		assert.False(t, ok)
	})

	t.Run("unknown name", func(t *testing.T) {
		reg := NewRegistry(t.TempDir())
		_, ok := reg.Find("nothing-here")
		assert.False(t, ok)
	})

	t.Run("misses are cached", func(t *testing.T) {
		dir := t.TempDir()
		reg := NewRegistry(dir)
		_, ok := reg.Find("late")
		require.False(t, ok)

		// Appearing after the first lookup does not change the answer.
		writeScript(t, filepath.Join(dir, "filters", "late"), catScript)
		_, ok = reg.Find("late")
		assert.False(t, ok)
	})
}
