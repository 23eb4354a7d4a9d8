package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stampgo/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an end-to-end app run.
type HarnessResult struct {
	Output    string
	LogOutput string
	Err       error
	Dir       string
}

// RunAppTest provides a standardized harness for running the app against a
// set of template files. The files map uses paths relative to a fresh
// temporary directory; the app's template root is the "templates"
// subdirectory. An optional mutate function adjusts the config before the
// run and receives the temporary directory for building paths.
func RunAppTest(t *testing.T, files map[string]string, mutate func(dir string, cfg *app.Config)) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := app.Config{
		TemplatesPath: filepath.Join(tmpDir, "templates"),
		LogLevel:      "debug",
		LogFormat:     "text",
		WorkerCount:   4,
	}
	if mutate != nil {
		mutate(tmpDir, &cfg)
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	outBuffer := &SafeBuffer{}
	logBuffer := &SafeBuffer{}
	testApp := app.NewApp(outBuffer, logBuffer, appConfig)
	runErr := testApp.Run(context.Background())

	return &HarnessResult{
		Output:    outBuffer.String(),
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Dir:       tmpDir,
	}
}
