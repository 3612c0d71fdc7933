// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestFetcherArtifactPath(t *testing.T) {
	f := NewFetcher(types.DownloadConfig{OutputDir: "out"})
	assert.Equal(t, filepath.Join("out", "7.pdf"), f.ArtifactPath(7))

	f = NewFetcher(types.DownloadConfig{OutputDir: "out", Extension: "bin"})
	assert.Equal(t, filepath.Join("out", "7.bin"), f.ArtifactPath(7))
}

func TestFetchSuccess(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{"/paper.pdf": servePDF})
	dir := t.TempDir()
	f := NewFetcher(testDownloadConfig(dir))

	require.NoError(t, f.Fetch(context.Background(), 3, host.URL+"/paper.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, "3.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(minimalPDF(), data))
	assert.Equal(t, []string{types.BrowserUserAgent}, host.userAgents())
}

func TestFetchCustomUserAgent(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{"/paper.pdf": servePDF})
	cfg := testDownloadConfig(t.TempDir())
	cfg.UserAgent = "custom-agent/1.0"

	require.NoError(t, NewFetcher(cfg).Fetch(context.Background(), 1, host.URL+"/paper.pdf"))
	assert.Equal(t, []string{"custom-agent/1.0"}, host.userAgents())
}

func TestFetchFollowsRedirects(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/doi/10.1/x": func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/files/x.pdf", http.StatusFound)
		},
		"/files/x.pdf": servePDF,
	})
	dir := t.TempDir()

	require.NoError(t, NewFetcher(testDownloadConfig(dir)).Fetch(context.Background(), 1, host.URL+"/doi/10.1/x"))
	assert.True(t, ValidatePDF(filepath.Join(dir, "1.pdf")))
	assert.Equal(t, []string{"/doi/10.1/x", "/files/x.pdf"}, host.requests())
}

func TestFetchHTTPError(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{"/forbidden.pdf": serveStatus(http.StatusForbidden)})
	dir := t.TempDir()
	f := NewFetcher(testDownloadConfig(dir))

	for _, path := range []string{"/missing.pdf", "/forbidden.pdf"} {
		err := f.Fetch(context.Background(), 1, host.URL+path)
		var te *TransportError
		require.ErrorAs(t, err, &te, path)
		assert.Equal(t, host.URL+path, te.URL)
		assert.Equal(t, types.FailureTransport, Kind(err))
	}
	assert.False(t, fileExists(filepath.Join(dir, "1.pdf")))
}

func TestFetchCorruptBodyIsRemoved(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/fake.pdf": serveBytes("application/pdf", notAPDF),
	})
	dir := t.TempDir()
	f := NewFetcher(testDownloadConfig(dir))

	err := f.Fetch(context.Background(), 1, host.URL+"/fake.pdf")
	var corrupt *CorruptArtifactError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, types.FailureCorrupt, Kind(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifact or temp file should remain")
}

func TestFetchOverwritesExistingFile(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{"/paper.pdf": servePDF})
	dir := t.TempDir()
	dest := filepath.Join(dir, "1.pdf")
	writeTestFile(t, dest, []byte("stale partial download"))

	require.NoError(t, NewFetcher(testDownloadConfig(dir)).Fetch(context.Background(), 1, host.URL+"/paper.pdf"))
	assert.True(t, ValidatePDF(dest))
}

func TestFetchEmptyURL(t *testing.T) {
	dir := t.TempDir()
	err := NewFetcher(testDownloadConfig(dir)).Fetch(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrNoURL)
	assert.Equal(t, types.FailureTransport, Kind(err))
}

func TestFetchUnreachableHost(t *testing.T) {
	host := newHostServer(t, nil)
	unreachable := host.URL
	host.Close()

	err := NewFetcher(testDownloadConfig(t.TempDir())).Fetch(context.Background(), 1, unreachable+"/x.pdf")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/slow.pdf": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		},
	})
	cfg := testDownloadConfig(t.TempDir())
	cfg.Timeout = 50 * time.Millisecond

	err := NewFetcher(cfg).Fetch(context.Background(), 1, host.URL+"/slow.pdf")
	assert.Equal(t, types.FailureTransport, Kind(err))
}

func TestFetchCancelled(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{"/paper.pdf": servePDF})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	err := NewFetcher(testDownloadConfig(dir)).Fetch(ctx, 1, host.URL+"/paper.pdf")
	assert.Equal(t, types.FailureInterrupted, Kind(err))
	assert.False(t, fileExists(filepath.Join(dir, "1.pdf")))
}

const landingPage = `<!DOCTYPE html>
<html><head>
<title>Paper</title>
<meta name="citation_title" content="A Paper">
<meta name="citation_pdf_url" content="/files/paper.pdf">
</head><body>Abstract.</body></html>`

func TestFetchFollowsLandingPage(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/article/1":       serveBytes("text/html; charset=utf-8", landingPage),
		"/files/paper.pdf": servePDF,
	})
	dir := t.TempDir()
	cfg := testDownloadConfig(dir)
	cfg.FollowLandingPages = true

	require.NoError(t, NewFetcher(cfg).Fetch(context.Background(), 5, host.URL+"/article/1"))
	assert.True(t, ValidatePDF(filepath.Join(dir, "5.pdf")))
	assert.Equal(t, []string{"/article/1", "/files/paper.pdf"}, host.requests())
}

func TestFetchLandingPageDisabled(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/article/1": serveBytes("text/html", landingPage),
	})
	dir := t.TempDir()

	err := NewFetcher(testDownloadConfig(dir)).Fetch(context.Background(), 5, host.URL+"/article/1")
	assert.Equal(t, types.FailureCorrupt, Kind(err))
	assert.Equal(t, []string{"/article/1"}, host.requests())
	assert.False(t, fileExists(filepath.Join(dir, "5.pdf")))
}

func TestFetchLandingPageWithoutLink(t *testing.T) {
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/article/1": serveBytes("text/html", "<html><body>Sign in to read</body></html>"),
	})
	dir := t.TempDir()
	cfg := testDownloadConfig(dir)
	cfg.FollowLandingPages = true

	err := NewFetcher(cfg).Fetch(context.Background(), 5, host.URL+"/article/1")
	assert.Equal(t, types.FailureCorrupt, Kind(err))
	assert.False(t, fileExists(filepath.Join(dir, "5.pdf")))
}

func TestFetchPDFServedAsHTMLIsWrittenInFull(t *testing.T) {
	body := paddedPDF(maxLandingPage + 1<<20)
	host := newHostServer(t, map[string]http.HandlerFunc{
		"/download": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write(body)
		},
	})
	dir := t.TempDir()
	cfg := testDownloadConfig(dir)
	cfg.FollowLandingPages = true

	require.NoError(t, NewFetcher(cfg).Fetch(context.Background(), 5, host.URL+"/download"))

	data, err := os.ReadFile(filepath.Join(dir, "5.pdf"))
	require.NoError(t, err)
	assert.Equal(t, len(body), len(data))
	assert.True(t, bytes.Equal(body, data))
	assert.Equal(t, []string{"/download"}, host.requests())
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, looksLikePDF(minimalPDF()))
	assert.True(t, looksLikePDF(append([]byte("\r\n"), minimalPDF()...)))
	assert.False(t, looksLikePDF([]byte(landingPage)))
	assert.False(t, looksLikePDF(nil))
}

func TestLandingPDFURL(t *testing.T) {
	base, err := url.Parse("https://journal.example/article/1?view=full")
	require.NoError(t, err)

	tests := []struct {
		name string
		page string
		want string
	}{
		{"relative", landingPage, "https://journal.example/files/paper.pdf"},
		{"absolute", `<meta name="citation_pdf_url" content="https://cdn.example/p.pdf">`, "https://cdn.example/p.pdf"},
		{"eprints", `<meta name="eprints.document_url" content="https://eprints.example/1/p.pdf">`, "https://eprints.example/1/p.pdf"},
		{"preference order", `<meta name="bepress_citation_pdf_url" content="/b.pdf"><meta name="citation_pdf_url" content="/a.pdf">`, "https://journal.example/a.pdf"},
		{"empty content", `<meta name="citation_pdf_url" content="  ">`, ""},
		{"non-http scheme", `<meta name="citation_pdf_url" content="javascript:alert(1)">`, ""},
		{"no meta", `<html><body>nothing</body></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, landingPDFURL(base, []byte(tt.page)))
		})
	}
}
