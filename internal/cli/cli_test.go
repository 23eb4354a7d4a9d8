package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PositionalPath(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"templates/"}, out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "templates/", cfg.TemplatesPath)
	assert.Equal(t, ".hbs", cfg.Ext)
	assert.Equal(t, "buffer", cfg.Backend)
}

func TestParse_FlagsOverrideDefaults(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{
		"-t", "site/",
		"-partials", "site/partials",
		"-ext", "tmpl",
		"-mode", "markup",
		"-backend", "view",
		"-print", "ast",
		"-workers", "8",
	}, out)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "site/", cfg.TemplatesPath)
	assert.Equal(t, "site/partials", cfg.PartialsDir)
	// A bare extension gets its leading dot added.
	assert.Equal(t, ".tmpl", cfg.Ext)
	assert.Equal(t, "markup", cfg.Mode)
	assert.Equal(t, "view", cfg.Backend)
	assert.Equal(t, "ast", cfg.Print)
	assert.Equal(t, 8, cfg.WorkerCount)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-log-format", "xml", "x"}},
		{"bad log level", []string{"-log-level", "loud", "x"}},
		{"bad backend", []string{"-backend", "quantum", "x"}},
		{"bad mode", []string{"-mode", "shouty", "x"}},
		{"bad print", []string{"-print", "everything", "x"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			_, _, err := Parse(tc.args, out)
			require.Error(t, err)

			exitErr, ok := err.(*ExitError)
			require.True(t, ok)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
