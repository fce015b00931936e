package main

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed scripts/*.sh
var scriptsFS embed.FS

// installScripts extracts the embedded edit scripts into dir, rewriting files
// that are missing or differ from the embedded copy
func installScripts(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create scripts directory: %w", err)
	}
	entries, err := fs.ReadDir(scriptsFS, "scripts")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		data, err := scriptsFS.ReadFile("scripts/" + entry.Name())
		if err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, data) {
			continue
		}
		if err := os.WriteFile(path, data, 0755); err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name(), err)
		}
		LogDebug("scripts").Str("path", path).Msg("Extracted edit script")
	}
	return nil
}
