package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CompilesAndRenders(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	tempDir := t.TempDir()
	tplPath := filepath.Join(tempDir, "greeting.hbs")
	require.NoError(t, os.WriteFile(tplPath, []byte("Hello, {{name}}!"), 0600))
	dataPath := filepath.Join(tempDir, "data.hcl")
	require.NoError(t, os.WriteFile(dataPath, []byte(`name = "world"`), 0600))

	args := []string{"-data", dataPath, "-log-level", "error", tplPath}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "Hello, world!", out.String())
}

func TestRun_CompileErrorFails(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	tempDir := t.TempDir()
	tplPath := filepath.Join(tempDir, "broken.hbs")
	require.NoError(t, os.WriteFile(tplPath, []byte("{{#if x}}open forever"), 0600))

	args := []string{"-log-level", "error", tplPath}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "template units failed")
}
