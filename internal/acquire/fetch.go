// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	// FetchTimeout bounds each candidate download, including the body.
	FetchTimeout = 15 * time.Second

	// DefaultExtension is the artifact file extension.
	DefaultExtension = "pdf"

	// maxLandingPage caps how much of an HTML response is parsed.
	maxLandingPage = 4 << 20

	// pdfSniffWindow is how far into a body the %PDF- marker is looked for.
	pdfSniffWindow = 1024
)

// ArtifactFetcher downloads one candidate URL to a record's artifact path.
// Check is the validator used both for the already-downloaded test and for
// confirming a fresh download.
type ArtifactFetcher interface {
	ArtifactPath(paperID int) string
	Check(path string) error
	Fetch(ctx context.Context, paperID int, rawURL string) error
}

// Fetcher downloads candidate URLs into the output directory and validates
// what it wrote.
type Fetcher struct {
	client        *http.Client
	outputDir     string
	ext           string
	userAgent     string
	followLanding bool
	check         func(path string) error
	logger        *slog.Logger
}

var _ ArtifactFetcher = (*Fetcher)(nil)

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchClient replaces the HTTP client (for testing).
func WithFetchClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithFetchLogger sets the logger for per-download lines.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a fetcher writing into cfg.OutputDir. The HTTP client
// follows redirects and gives up after FetchTimeout unless cfg.Timeout
// overrides it.
func NewFetcher(cfg types.DownloadConfig, opts ...FetcherOption) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = FetchTimeout
	}
	ext := cfg.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.BrowserUserAgent
	}

	f := &Fetcher{
		client:        &http.Client{Timeout: timeout},
		outputDir:     cfg.OutputDir,
		ext:           ext,
		userAgent:     ua,
		followLanding: cfg.FollowLandingPages,
		check:         CheckPDF,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ArtifactPath returns output_dir/{paperID}.{ext}.
func (f *Fetcher) ArtifactPath(paperID int) string {
	return filepath.Join(f.outputDir, strconv.Itoa(paperID)+"."+f.ext)
}

// Check validates the artifact at path with the fetcher's validator.
func (f *Fetcher) Check(path string) error {
	return f.check(path)
}

// Fetch downloads rawURL to the artifact path for paperID, overwriting any
// existing file, then validates it. It returns nil only when the transport
// succeeded and the written file passed validation; an invalid file has
// already been removed when a *CorruptArtifactError is returned.
func (f *Fetcher) Fetch(ctx context.Context, paperID int, rawURL string) error {
	if rawURL == "" {
		return ErrNoURL
	}

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.Reader(resp.Body)
	if f.followLanding && isHTML(resp) {
		page, err := io.ReadAll(io.LimitReader(resp.Body, maxLandingPage))
		if err != nil {
			return &TransportError{URL: rawURL, Err: err}
		}
		// An unfollowed response is still written in full.
		body = io.MultiReader(bytes.NewReader(page), resp.Body)

		if looksLikePDF(page) {
			f.logger.Debug("html content type on a PDF body", "paper_id", paperID, "url", rawURL)
		} else if pdfURL := landingPDFURL(resp.Request.URL, page); pdfURL != "" {
			f.logger.Info("following landing page", "paper_id", paperID, "from", rawURL, "to", pdfURL)
			inner, err := f.get(ctx, pdfURL)
			if err != nil {
				return err
			}
			defer inner.Body.Close()
			body = inner.Body
		}
	}

	dest := f.ArtifactPath(paperID)
	n, err := writeArtifact(ctx, body, dest)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{URL: rawURL, Err: err}
	}

	if err := f.check(dest); err != nil {
		return err
	}
	f.logger.Info("saved artifact", "paper_id", paperID, "path", dest, "size", humanize.Bytes(uint64(n)))
	return nil
}

// get issues the GET and turns network errors and non-2xx responses into
// *TransportError. On success the caller owns resp.Body.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// writeArtifact streams r to a temporary file next to destPath and renames it
// into place, so destPath never holds a half-written download.
func writeArtifact(ctx context.Context, r io.Reader, destPath string) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr == nil && ctx.Err() != nil {
		copyErr = ctx.Err()
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

// looksLikePDF reports whether body starts like a PDF despite its content
// type.
func looksLikePDF(body []byte) bool {
	return bytes.Contains(body[:min(len(body), pdfSniffWindow)], pdfMarker)
}

func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
