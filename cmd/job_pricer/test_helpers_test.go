package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command in-process and returns what it wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func testdataPath(t *testing.T, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return p
}

// writeTestConfig writes a config using the memory backends over testdata. The embedding
// provider has no embedding endpoint, so matching always takes the embedding_unavailable path
// and no network call is made.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job_pricer.yaml")
	content := fmt.Sprintf(`log:
  debug: false
embedding:
  provider: anthropic
index:
  backend: memory
  records_file: %q
market:
  backend: memory
  file: %q
params:
  file: %q
retry:
  attempts: 1
  initial_delay: 1ms
`, testdataPath(t, "records.json"), testdataPath(t, "benchmarks.yaml"), testdataPath(t, "params.yaml"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
