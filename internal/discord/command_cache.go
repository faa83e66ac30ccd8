package discord

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// globalScope names the cache file of globally registered commands.
const globalScope = "global"

func cachePath(dir, scope string) string {
	if scope == "" {
		scope = globalScope
	}
	return filepath.Join(dir, scope+".json")
}

// loadCommandHashes reads the cached hashes of a scope. A missing or
// unreadable cache is treated as empty so commands get re-registered.
func loadCommandHashes(dir, scope string) map[string]string {
	hashes := make(map[string]string)
	data, err := os.ReadFile(cachePath(dir, scope))
	if err == nil {
		_ = json.Unmarshal(data, &hashes)
	}
	return hashes
}

func saveCommandHashes(dir, scope string, hashes map[string]string) error {
	path := cachePath(dir, scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// hashesChanged reports whether the local command set differs from the cache.
func hashesChanged(cached, local map[string]string) bool {
	return !maps.Equal(cached, local)
}
