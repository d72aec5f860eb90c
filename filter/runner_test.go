package filter

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picodoc-lang/picodoc/eval"
)

func newTestRunner(t *testing.T, scripts map[string]string, opts ...RunnerOption) *Runner {
	t.Helper()
	dir := t.TempDir()
	for name, script := range scripts {
		writeScript(t, filepath.Join(dir, "filters", name), script)
	}
	return NewRunner(NewRegistry(dir), opts...)
}

func TestRunnerLookup(t *testing.T) {
	r := newTestRunner(t, map[string]string{"chart": catScript})
	assert.True(t, r.Lookup("chart"))
	assert.False(t, r.Lookup("missing"))
}

func TestRunnerInvoke(t *testing.T) {
	t.Run("request payload shape", func(t *testing.T) {
		r := newTestRunner(t, map[string]string{"echo": catScript})
		out, err := r.Invoke(context.Background(), &eval.FilterRequest{
			Name:    "echo",
			Args:    map[string]string{"type": "bar", "width": "40"},
			Body:    "1,2,3",
			HasBody: true,
			Env:     map[string]string{"mode": "draft"},
		})
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Equal(t, "bar", payload["type"])
		assert.Equal(t, "40", payload["width"])
		assert.Equal(t, "1,2,3", payload["body"])
		assert.Equal(t, map[string]any{"mode": "draft"}, payload["env"])
	})

	t.Run("body omitted when absent", func(t *testing.T) {
		r := newTestRunner(t, map[string]string{"echo": catScript})
		out, err := r.Invoke(context.Background(), &eval.FilterRequest{Name: "echo"})
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		_, hasBody := payload["body"]
		assert.False(t, hasBody)
		assert.Equal(t, map[string]any{}, payload["env"])
	})

	t.Run("stdout returned verbatim", func(t *testing.T) {
		script := "#!/bin/sh\nprintf '#p: generated\\n'\n"
		r := newTestRunner(t, map[string]string{"gen": script})
		out, err := r.Invoke(context.Background(), &eval.FilterRequest{Name: "gen"})
		require.NoError(t, err)
		assert.Equal(t, "#p: generated\n", out)
	})

	t.Run("nonzero exit", func(t *testing.T) {
		script := "#!/bin/sh\necho 'no data' >&2\nexit 3\n"
		r := newTestRunner(t, map[string]string{"boom": script})
		_, err := r.Invoke(context.Background(), &eval.FilterRequest{Name: "boom"})
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 3, execErr.Code)
		assert.Equal(t, "filter 'boom' failed (exit 3): no data", err.Error())
	})

	t.Run("timeout", func(t *testing.T) {
		script := "#!/bin/sh\nsleep 5\n"
		r := newTestRunner(t, map[string]string{"slow": script}, WithTimeout(100*time.Millisecond))
		_, err := r.Invoke(context.Background(), &eval.FilterRequest{Name: "slow"})
		var timeoutErr *TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.True(t, timeoutErr.Timeout())
		assert.Equal(t, "filter 'slow' timed out after 100ms", err.Error())
	})

	t.Run("unknown filter", func(t *testing.T) {
		r := newTestRunner(t, nil)
		_, err := r.Invoke(context.Background(), &eval.FilterRequest{Name: "ghost"})
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
	})
}
