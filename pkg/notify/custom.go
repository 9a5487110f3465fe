package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// script is a user executable receiving each Result as JSON on stdin.
type script struct {
	path string
}

// run executes the script, its combined output is included in the error on failure.
func (s script) run(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path) //nolint:gosec // path comes from user config
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout, cmd.Stderr = &out, &out

	if err = cmd.Run(); err != nil {
		if o := strings.TrimSpace(out.String()); o != "" {
			return fmt.Errorf("script %s: %w, output: %s", s.path, err, o)
		}
		return fmt.Errorf("script %s: %w", s.path, err)
	}
	return nil
}
