// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Record is one row of the input table. Records are built once when the
// table is read and never change afterwards.
type Record struct {
	// Position is the 1-based row number, excluding the header.
	Position int `json:"position" yaml:"position"`

	// PaperID keys the artifact filename and log lines. It is Position
	// unless an id column is configured.
	PaperID int `json:"paper_id" yaml:"paper_id"`

	// DOI is the identifier column value in direct mode.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title and Authors are the raw lookup-mode column values.
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Invalid explains why the row could not be mapped to a paper id.
	Invalid string `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// Rank tells a resolver's preferred location apart from the rest.
type Rank string

const (
	RankPrimary   Rank = "primary"
	RankAlternate Rank = "alternate"
)

// Candidate is one URL proposed as a source for an artifact.
type Candidate struct {
	URL  string `json:"url" yaml:"url"`
	Rank Rank   `json:"rank" yaml:"rank"`

	// Ordinal is the position among alternates (0 for the primary).
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// HostType and Version are informational ("publisher", "repository";
	// "publishedVersion", "acceptedVersion").
	HostType string `json:"host_type,omitempty" yaml:"host_type,omitempty"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Resolution is a resolver's answer for one DOI.
type Resolution struct {
	DOI        string      `json:"doi" yaml:"doi"`
	Primary    *Candidate  `json:"primary,omitempty" yaml:"primary,omitempty"`
	Alternates []Candidate `json:"alternates,omitempty" yaml:"alternates,omitempty"`
}

// Candidates returns the fetch order: the primary first, then alternates in
// the order the service returned them.
func (r Resolution) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.Alternates)+1)
	if r.Primary != nil && r.Primary.URL != "" {
		out = append(out, *r.Primary)
	}
	return append(out, r.Alternates...)
}

// State is a record's position in the per-record pipeline.
type State string

const (
	StatePending   State = "pending"
	StateSkipped   State = "skipped"
	StateResolving State = "resolving"
	StateResolved  State = "resolved"
	StateFetching  State = "fetching"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateDone || s == StateFailed
}

// FailureKind is the closed set of reasons a record can fail.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureNotFound      FailureKind = "not_found"
	FailureNoOpenAccess  FailureKind = "no_open_access"
	FailureLookupFailed  FailureKind = "lookup_failed"
	FailureTransport     FailureKind = "transport"
	FailureCorrupt       FailureKind = "corrupt_artifact"
	FailureInterrupted   FailureKind = "interrupted"
	FailureInvalidRecord FailureKind = "invalid_record"
)

// Attempt is one fetch of one candidate.
type Attempt struct {
	URL   string      `json:"url" yaml:"url"`
	Rank  Rank        `json:"rank" yaml:"rank"`
	Kind  FailureKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome is the result of processing one record.
type Outcome struct {
	Position int         `json:"position" yaml:"position"`
	PaperID  int         `json:"paper_id" yaml:"paper_id"`
	DOI      string      `json:"doi,omitempty" yaml:"doi,omitempty"`
	State    State       `json:"state" yaml:"state"`
	Kind     FailureKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Err is the terminal error for failed records.
	Err error `json:"-" yaml:"-"`

	// Path is the artifact location for done and skipped records.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is the candidate that produced the artifact.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	Attempts []Attempt `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Message returns the error text, or "" for records that did not fail.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
