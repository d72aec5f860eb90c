package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	in := strings.NewReader(`{"body": "## Notes\n\nSome *emphasized* prose.\n", "env": {"version": "1.0"}}`)
	var out bytes.Buffer

	require.NoError(t, run(in, &out))

	markup := out.String()
	assert.Contains(t, markup, "#h2: Notes")
	assert.Contains(t, markup, "[#i : emphasized]")
}

func TestRun_MissingBody(t *testing.T) {
	in := strings.NewReader(`{"env": {}}`)
	var out bytes.Buffer

	err := run(in, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no body")
}

func TestRun_MalformedRequest(t *testing.T) {
	in := strings.NewReader(`not json`)
	var out bytes.Buffer

	err := run(in, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode request")
}
