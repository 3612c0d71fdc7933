// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Manifest is the YAML summary written after a batch.
type Manifest struct {
	GeneratedAt time.Time       `yaml:"generated_at"`
	Downloaded  int             `yaml:"downloaded"`
	Skipped     int             `yaml:"skipped"`
	Failed      int             `yaml:"failed"`
	Records     []ManifestEntry `yaml:"records"`
}

// ManifestEntry is one record outcome with its error text.
type ManifestEntry struct {
	types.Outcome `yaml:",inline"`
	Error         string `yaml:"error,omitempty"`
}

// NewManifest builds a manifest from a batch result.
func NewManifest(result BatchResult, now time.Time) Manifest {
	m := Manifest{
		GeneratedAt: now.UTC(),
		Downloaded:  result.Downloaded,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
	}
	for _, out := range result.Outcomes {
		m.Records = append(m.Records, ManifestEntry{Outcome: out, Error: out.Message()})
	}
	return m
}

// WriteManifest writes the batch summary to path as YAML.
func WriteManifest(path string, result BatchResult) error {
	data, err := yaml.Marshal(NewManifest(result, time.Now()))
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
