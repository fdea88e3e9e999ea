// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes an archived job result to dir/<jobID>.yaml and
// returns the path written.
func (s *Store) ExportYAML(ctx context.Context, jobID string) (string, error) {
	result, err := s.Load(ctx, jobID)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}

	path := filepath.Join(s.dir, jobID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ExportJSON writes an archived job result to dir/<jobID>.json and
// returns the path written.
func (s *Store) ExportJSON(ctx context.Context, jobID string) (string, error) {
	result, err := s.Load(ctx, jobID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}

	path := filepath.Join(s.dir, jobID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
