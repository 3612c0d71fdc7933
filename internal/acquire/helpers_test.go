// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// minimalPDF returns a small, structurally valid PDF with a correct
// cross-reference table.
func minimalPDF() []byte {
	return paddedPDF(0)
}

// paddedPDF is minimalPDF with a comment line of pad bytes after the header,
// for bodies of a given size.
func paddedPDF(pad int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	if pad > 0 {
		buf.WriteString("%" + strings.Repeat("x", pad) + "\n")
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

const notAPDF = "%PDF-1.4 fake"

// hostServer is a fake publisher host that records every request path.
type hostServer struct {
	*httptest.Server

	mu     sync.Mutex
	paths  []string
	agents []string
}

// newHostServer serves handlers by path; unknown paths get 404.
func newHostServer(t *testing.T, routes map[string]http.HandlerFunc) *hostServer {
	t.Helper()
	h := &hostServer{}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.paths = append(h.paths, r.URL.Path)
		h.agents = append(h.agents, r.UserAgent())
		h.mu.Unlock()

		if fn, ok := routes[r.URL.Path]; ok {
			fn(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hostServer) requests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func (h *hostServer) userAgents() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.agents...)
}

func servePDF(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(minimalPDF())
}

func serveBytes(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}
}

func serveStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

// stubResolver returns canned resolutions and counts calls.
type stubResolver struct {
	mu      sync.Mutex
	results map[string]types.Resolution
	errs    map[string]error
	calls   []string
}

func (s *stubResolver) Resolve(_ context.Context, doi string) (types.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, doi)
	if err, ok := s.errs[doi]; ok {
		return types.Resolution{}, err
	}
	res, ok := s.results[doi]
	if !ok {
		return types.Resolution{}, fmt.Errorf("stub %s: %w", doi, ErrNotFound)
	}
	return res, nil
}

func (s *stubResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubLookup maps title to DOI.
type stubLookup struct {
	dois  map[string]string
	calls int
}

func (s *stubLookup) LookupDOI(_ context.Context, title, _ string) (string, error) {
	s.calls++
	doi, ok := s.dois[title]
	if !ok {
		return "", fmt.Errorf("%w: no results for %q", ErrLookupFailed, title)
	}
	return doi, nil
}

func resolution(doi string, primary string, alternates ...string) types.Resolution {
	res := types.Resolution{DOI: doi}
	if primary != "" {
		res.Primary = &types.Candidate{URL: primary, Rank: types.RankPrimary}
	}
	for i, u := range alternates {
		res.Alternates = append(res.Alternates, types.Candidate{URL: u, Rank: types.RankAlternate, Ordinal: i + 1})
	}
	return res
}

func testResolverConfig() types.ResolverConfig {
	return types.ResolverConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "paperfetch-test/0.1",
		},
		Email:     "test@example.com",
		RateLimit: -1,
	}
}

func testDownloadConfig(dir string) types.DownloadConfig {
	return types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second},
		OutputDir:  dir,
	}
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
