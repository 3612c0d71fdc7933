// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPDF(t *testing.T) {
	pdf := minimalPDF()

	tests := []struct {
		name        string
		content     []byte
		wantValid   bool
		wantRemoved bool
	}{
		{"valid pdf", pdf, true, false},
		{"fake header", []byte(notAPDF), false, true},
		{"html error page", []byte("<html><body>Access denied</body></html>"), false, true},
		{"empty file", []byte{}, false, true},
		{"truncated pdf", pdf[:len(pdf)/2], false, true},
		{"missing eof marker", pdf[:len(pdf)-6], false, true},
		{"trailing nul bytes", concat(pdf, make([]byte, 16)), true, false},
		{"trailing nul kilobyte", concat(pdf, make([]byte, 1024)), true, false},
		{"trailing newlines", concat(pdf, bytes.Repeat([]byte("\n"), 2048)), true, false},
		{"trailing html junk", concat(pdf, []byte("<html>tracking pixel</html>\n")), true, false},
		{"leading blank lines", concat([]byte("\r\n\r\n"), pdf), true, false},
		{"pdf 2.0 header", bytes.Replace(pdf, []byte("%PDF-1.4"), []byte("%PDF-2.0"), 1), true, false},
		{"stale startxref", shiftStartXref(t, pdf, 3), true, false},
		{"header beyond first kilobyte", concat(bytes.Repeat([]byte("x"), 2048), pdf), false, true},
		{"startxref and xref keyword both missing", bytes.Replace(shiftStartXref(t, pdf, 3), []byte("\nxref\n"), []byte("\nxfer\n"), 1), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "1.pdf")
			writeTestFile(t, path, tt.content)

			err := CheckPDF(path)
			if tt.wantValid {
				require.NoError(t, err)
				assert.True(t, fileExists(path))
				return
			}

			var corrupt *CorruptArtifactError
			require.True(t, errors.As(err, &corrupt), "want *CorruptArtifactError, got %v", err)
			assert.Equal(t, path, corrupt.Path)
			assert.Equal(t, tt.wantRemoved, !fileExists(path))
		})
	}
}

func TestCheckPDFMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.pdf")

	err := CheckPDF(path)
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.False(t, ValidatePDF(path))
}

func TestCheckPDFDirectoryIsNotRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.pdf")
	require.NoError(t, os.Mkdir(path, 0o755))

	err := CheckPDF(path)
	var corrupt *CorruptArtifactError
	require.ErrorAs(t, err, &corrupt)

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestValidatePDFIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.pdf")
	writeTestFile(t, path, minimalPDF())

	// Accepting a file must not change it, so repeated checks agree.
	for i := 0; i < 3; i++ {
		assert.True(t, ValidatePDF(path))
	}
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// shiftStartXref moves the startxref offset of a generated PDF by delta so it
// no longer points at the xref keyword.
func shiftStartXref(t *testing.T, pdf []byte, delta int) []byte {
	t.Helper()
	marker := []byte("startxref\n")
	i := bytes.LastIndex(pdf, marker)
	require.GreaterOrEqual(t, i, 0)
	rest := pdf[i+len(marker):]
	nl := bytes.IndexByte(rest, '\n')
	require.Greater(t, nl, 0)
	off, err := strconv.Atoi(string(rest[:nl]))
	require.NoError(t, err)

	return concat(pdf[:i+len(marker)], []byte(strconv.Itoa(off+delta)), rest[nl:])
}

func TestPDFViewReadAt(t *testing.T) {
	v := &pdfView{
		src:    bytes.NewReader([]byte("%PDF-2.0\nbody")),
		size:   13,
		header: []byte("%PDF-1.7\n"),
		tail:   []byte("TAIL"),
	}
	assert.Equal(t, int64(17), v.Size())

	buf := make([]byte, 17)
	n, err := v.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, "%PDF-1.7\nbodyTAIL", string(buf))

	n, err = v.ReadAt(buf[:8], 11)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "dyTAIL", string(buf[:n]))
}

func TestLastIndexAtAcrossChunks(t *testing.T) {
	// The marker straddles the boundary of the last 64 KiB chunk.
	data := concat(make([]byte, 10), eofMarker, make([]byte, 64<<10-3))
	r := bytes.NewReader(data)

	assert.Equal(t, int64(10), lastIndexAt(r, int64(len(data)), eofMarker))
	assert.Equal(t, int64(-1), lastIndexAt(r, int64(len(data)), []byte("startxref")))
}
