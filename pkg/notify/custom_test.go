package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script with body in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700)) //nolint:gosec // test script needs execute permission
	return path
}

func TestScript_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	t.Run("pipes json to script stdin", func(t *testing.T) {
		r := Result{
			Status:   StatusSuccess,
			Run:      "e2e",
			AppURL:   "http://localhost:8080/",
			Duration: "2m 10s",
			LogFile:  "/tmp/tunecheck-e2e.log",
		}
		outputFile := filepath.Join(t.TempDir(), "output.json")
		ch := script{path: writeScript(t, "cat > "+outputFile)}

		require.NoError(t, ch.run(context.Background(), r))

		data, err := os.ReadFile(outputFile) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		var got Result
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, r, got)
	})

	t.Run("failure result includes error field", func(t *testing.T) {
		outputFile := filepath.Join(t.TempDir(), "output.json")
		ch := script{path: writeScript(t, "cat > "+outputFile)}

		require.NoError(t, ch.run(context.Background(), Result{Status: StatusFailure, Run: "seed", Error: "import 3 song(s): 500"}))

		data, err := os.ReadFile(outputFile) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"error":"import 3 song(s): 500"`)
		assert.Contains(t, string(data), `"status":"failure"`)
	})

	t.Run("non-zero exit code returns error with output", func(t *testing.T) {
		ch := script{path: writeScript(t, "echo stdout info\necho stderr info >&2\nexit 1")}

		err := ch.run(context.Background(), Result{Status: StatusSuccess})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script")
		assert.Contains(t, err.Error(), "output:")
		assert.Contains(t, err.Error(), "stdout info")
		assert.Contains(t, err.Error(), "stderr info")
	})

	t.Run("timeout kills script", func(t *testing.T) {
		ch := script{path: writeScript(t, "exec sleep 10")}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		require.Error(t, ch.run(ctx, Result{Status: StatusSuccess}))
	})

	t.Run("nonexistent script returns error", func(t *testing.T) {
		ch := script{path: "/nonexistent/script.sh"}
		err := ch.run(context.Background(), Result{Status: StatusSuccess})
		require.ErrorContains(t, err, "script /nonexistent/script.sh")
	})
}
