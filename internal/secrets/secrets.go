// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: registry-key, registry-secret, office-username,
// office-password, translate-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// Key names recognized by Apply.
const (
	KeyRegistryKey     = "registry-key"
	KeyRegistrySecret  = "registry-secret"
	KeyOfficeUsername  = "office-username"
	KeyOfficePassword  = "office-password"
	KeyTranslateAPIKey = "translate-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply copies recognized secrets into the pipeline configuration.
// Values already present in the configuration are not overwritten, so
// environment-sourced credentials take precedence over key files.
func Apply(cfg *types.PipelineConfig, secrets map[string]string) {
	setIfEmpty(&cfg.Registry.Key, secrets[KeyRegistryKey])
	setIfEmpty(&cfg.Registry.Secret, secrets[KeyRegistrySecret])
	setIfEmpty(&cfg.Office.Username, secrets[KeyOfficeUsername])
	setIfEmpty(&cfg.Office.Password, secrets[KeyOfficePassword])
	setIfEmpty(&cfg.Translation.APIKey, secrets[KeyTranslateAPIKey])
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}
