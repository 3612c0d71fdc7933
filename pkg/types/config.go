// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// BrowserUserAgent is sent by the fetcher. Some publisher hosts reject
// requests that do not look like they come from a browser.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ResolverBackend identifies the open-access resolution service.
type ResolverBackend string

const (
	BackendUnpaywall ResolverBackend = "unpaywall"
	BackendOpenAlex  ResolverBackend = "openalex"
)

// ColumnMapping names the input table columns consumed by the batch.
// Either DOI is set, or both Title and Authors are.
type ColumnMapping struct {
	// Delimiter is the single-character column separator (default ",").
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// ID optionally names an integer column that overrides the row position
	// as the paper id.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// DOI names the identifier column (direct mode).
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title and Authors name the free-text columns used for lookup mode.
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`
}

// LookupMode reports whether identifiers come from a title/author search
// rather than a DOI column.
func (m ColumnMapping) LookupMode() bool {
	return m.DOI == ""
}

// Comma returns the delimiter as a rune, defaulting to ','.
func (m ColumnMapping) Comma() rune {
	if m.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(m.Delimiter)
	return r
}

// Validate checks that the mapping selects exactly one mode and a usable delimiter.
func (m ColumnMapping) Validate() error {
	if m.Delimiter != "" && utf8.RuneCountInString(m.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", m.Delimiter)
	}
	switch c := m.Comma(); c {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("invalid delimiter %q", c)
	}
	if m.DOI == "" && (m.Title == "" || m.Authors == "") {
		return errors.New("provide either a DOI column or both title and authors columns")
	}
	return nil
}

// ResolverConfig holds settings for the open-access resolver and the
// bibliographic lookup service.
type ResolverConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the resolution service (default unpaywall).
	Backend ResolverBackend `json:"backend" yaml:"backend"`

	// Email is the contact address required by the Unpaywall usage policy and
	// sent to CrossRef and OpenAlex for their polite pools.
	Email string `json:"email" yaml:"email"`

	// RateLimit caps requests per second to each metadata service. Zero or
	// less disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	// MaxRetries bounds retries on HTTP 429 responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DownloadConfig holds settings for the fetcher.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutputDir receives {paper_id}.{ext} artifacts. It must already exist.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Extension is the artifact file extension without the dot (default "pdf").
	Extension string `json:"extension" yaml:"extension"`

	// FollowLandingPages lets the fetcher follow a citation_pdf_url meta tag
	// when a candidate serves HTML instead of the document.
	FollowLandingPages bool `json:"follow_landing_pages" yaml:"follow_landing_pages"`
}

// BatchConfig is the immutable configuration handed to the batch controller.
type BatchConfig struct {
	Columns  ColumnMapping  `json:"columns" yaml:"columns"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Download DownloadConfig `json:"download" yaml:"download"`

	// Delay is an optional pause between consecutive records.
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Verbose enables informational log lines.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// LedgerPath optionally names a SQLite run ledger.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`

	// ManifestPath optionally names a YAML summary written after the batch.
	ManifestPath string `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
}
