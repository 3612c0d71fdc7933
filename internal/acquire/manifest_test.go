// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestWriteManifest(t *testing.T) {
	result := BatchResult{}
	result.add(types.Outcome{Position: 1, PaperID: 1, DOI: "10.1/a", State: types.StateDone,
		Path: "out/1.pdf", URL: "https://host/a.pdf",
		Attempts: []types.Attempt{{URL: "https://host/a.pdf", Rank: types.RankPrimary}}})
	result.add(types.Outcome{Position: 2, PaperID: 2, State: types.StateSkipped, Path: "out/2.pdf"})
	result.add(types.Outcome{Position: 3, PaperID: 3, DOI: "10.1/c", State: types.StateFailed,
		Kind: types.FailureNotFound, Err: errors.New("unpaywall 10.1/c: no record for identifier")})

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, WriteManifest(path, result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: not_found")
	assert.Contains(t, string(data), "no record for identifier")

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Downloaded)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, 1, m.Failed)
	assert.WithinDuration(t, time.Now(), m.GeneratedAt, time.Minute)

	require.Len(t, m.Records, 3)
	assert.Equal(t, "10.1/a", m.Records[0].DOI)
	assert.Equal(t, types.StateDone, m.Records[0].State)
	require.Len(t, m.Records[0].Attempts, 1)
	assert.Equal(t, types.RankPrimary, m.Records[0].Attempts[0].Rank)
	assert.Empty(t, m.Records[1].Error)
	assert.Equal(t, types.FailureNotFound, m.Records[2].Kind)
	assert.Equal(t, "unpaywall 10.1/c: no record for identifier", m.Records[2].Error)
}

func TestNewManifestEmptyBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	m := NewManifest(BatchResult{}, now)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), m.GeneratedAt)
	assert.Empty(t, m.Records)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
