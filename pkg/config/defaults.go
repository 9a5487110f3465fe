package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// defaultsInstaller writes the embedded defaults into the global config directory.
type defaultsInstaller struct {
	embedFS embed.FS
}

// newDefaultsInstaller creates a new defaultsInstaller with the given embedded filesystem.
func newDefaultsInstaller(embedFS embed.FS) *defaultsInstaller {
	return &defaultsInstaller{embedFS: embedFS}
}

// Install creates the config directory and installs the default config file if it doesn't exist.
// this is called on first run to give users a commented template to edit, an existing file is never touched.
func (d *defaultsInstaller) Install(configDir string) error {
	// create config directory (0700 - user only, the config may hold credentials)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config")
	_, statErr := os.Stat(configPath)
	if statErr == nil {
		return nil
	}
	if !os.IsNotExist(statErr) {
		return fmt.Errorf("check config file: %w", statErr)
	}

	data, err := d.embedFS.ReadFile("defaults/config")
	if err != nil {
		return fmt.Errorf("read embedded config: %w", err)
	}
	if err := os.WriteFile(configPath, commentOut(data), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// commentOut prefixes every non-empty, non-comment line with "# ".
// installed templates stay inert so later changes to the embedded defaults take effect.
func commentOut(data []byte) []byte {
	var out []byte
	for i, line := range splitLines(data) {
		if i > 0 {
			out = append(out, '\n')
		}
		if len(line) > 0 && line[0] != '#' {
			out = append(out, "# "...)
		}
		out = append(out, line...)
	}
	return out
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	return append(lines, data[start:])
}
