// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads open-access papers for the rows of an input
// table. For each record it resolves a DOI, asks an open-access resolver for
// candidate URLs, and fetches them in order until one yields a valid PDF.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Recorder receives every record outcome, for example a run ledger.
type Recorder interface {
	Record(ctx context.Context, out types.Outcome) error
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Outcomes   []types.Outcome
}

// Total returns the number of records processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any record failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(out types.Outcome) {
	switch out.State {
	case types.StateDone:
		r.Downloaded++
	case types.StateSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, out)
}

// Controller drives records through the pipeline one at a time.
type Controller struct {
	cfg      types.BatchConfig
	resolver Resolver
	lookup   IdentifierLookup
	fetcher  ArtifactFetcher
	recorder Recorder
	logger   *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithBatchLogger sets the logger for record lines.
func WithBatchLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRecorder attaches a Recorder that sees every outcome.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) {
		c.recorder = r
	}
}

// NewController wires the pipeline. lookup may be nil when the column
// mapping is in DOI mode.
func NewController(cfg types.BatchConfig, resolver Resolver, lookup IdentifierLookup, fetcher ArtifactFetcher, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:      cfg,
		resolver: resolver,
		lookup:   lookup,
		fetcher:  fetcher,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes records in order. A failed record never stops the batch;
// cancelling ctx does, and Run then returns the partial result together with
// ErrInterrupted.
func (c *Controller) Run(ctx context.Context, records []types.Record) (BatchResult, error) {
	var result BatchResult
	for i, rec := range records {
		if i > 0 && c.cfg.Delay > 0 {
			if err := sleep(ctx, c.cfg.Delay); err != nil {
				return result, ErrInterrupted
			}
		}
		if ctx.Err() != nil {
			return result, ErrInterrupted
		}

		out := c.Process(ctx, rec)
		if out.Kind == types.FailureInterrupted {
			return result, ErrInterrupted
		}
		result.add(out)

		if c.recorder != nil {
			if err := c.recorder.Record(ctx, out); err != nil {
				c.logger.Error("recording outcome", "paper_id", out.PaperID, "err", err)
			}
		}
	}

	c.logger.Info("batch finished",
		"downloaded", result.Downloaded, "skipped", result.Skipped,
		"failed", result.Failed, "total", result.Total())
	return result, nil
}

// Process takes one record from Pending to a terminal state.
func (c *Controller) Process(ctx context.Context, rec types.Record) types.Outcome {
	out := types.Outcome{Position: rec.Position, PaperID: rec.PaperID, State: types.StatePending}
	log := c.logger.With("paper_id", rec.PaperID)

	if rec.Invalid != "" {
		return c.fail(log, out, fmt.Errorf("row %d: %w: %s", rec.Position, ErrInvalidRecord, rec.Invalid))
	}

	// Pending: a valid artifact from an earlier run short-circuits everything.
	path := c.fetcher.ArtifactPath(rec.PaperID)
	switch err := c.fetcher.Check(path); {
	case err == nil:
		out.State = types.StateSkipped
		out.Path = path
		log.Info("already exists, skipping", "path", path)
		return out
	case !errors.Is(err, ErrArtifactMissing):
		var corrupt *CorruptArtifactError
		if errors.As(err, &corrupt) && corrupt.Removed {
			log.Warn("removed invalid artifact from an earlier run", "path", path, "err", err)
		} else {
			log.Warn("artifact path is occupied by something other than a readable file", "path", path, "err", err)
		}
	}

	// Resolving.
	out.State = types.StateResolving
	doi, err := c.identifier(ctx, rec)
	if err != nil {
		return c.fail(log, out, err)
	}
	out.DOI = doi
	log = log.With("doi", doi, "ref", DOIRef(doi))
	if !LooksLikeDOI(doi) {
		log.Warn("identifier does not look like a DOI")
	}

	// Resolved.
	out.State = types.StateResolved
	res, err := c.resolver.Resolve(ctx, doi)
	if err != nil {
		return c.fail(log, out, err)
	}
	candidates := res.Candidates()
	if len(candidates) == 0 {
		return c.fail(log, out, fmt.Errorf("%s: %w", doi, ErrNoOpenAccess))
	}
	log.Info("resolved", "candidates", len(candidates))

	// Fetching: the first candidate that downloads and validates wins.
	out.State = types.StateFetching
	var lastErr error
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return c.fail(log, out, ctx.Err())
		}
		err := c.fetcher.Fetch(ctx, rec.PaperID, cand.URL)
		attempt := types.Attempt{URL: cand.URL, Rank: cand.Rank}
		if err == nil {
			out.Attempts = append(out.Attempts, attempt)
			out.State = types.StateDone
			out.Path = path
			out.URL = cand.URL
			log.Info("downloaded", "url", cand.URL, "rank", cand.Rank, "path", path)
			return out
		}

		attempt.Kind = Kind(err)
		attempt.Error = err.Error()
		out.Attempts = append(out.Attempts, attempt)
		if attempt.Kind == types.FailureInterrupted {
			return c.fail(log, out, err)
		}
		log.Error("candidate failed", "url", cand.URL, "rank", cand.Rank, "ordinal", cand.Ordinal, "kind", attempt.Kind, "err", err)
		lastErr = err
	}

	return c.fail(log, out, fmt.Errorf("all %d candidates failed: %w", len(candidates), lastErr))
}

// identifier returns the DOI for rec: the DOI column in direct mode, or a
// CrossRef lookup on the title and authors columns.
func (c *Controller) identifier(ctx context.Context, rec types.Record) (string, error) {
	cols := c.cfg.Columns
	if !cols.LookupMode() {
		doi := NormalizeDOI(rec.DOI)
		if doi == "" {
			return "", fmt.Errorf("row %d: %w: column %q is empty or missing", rec.Position, ErrLookupFailed, cols.DOI)
		}
		return doi, nil
	}

	switch {
	case rec.Title == "":
		return "", fmt.Errorf("row %d: %w: column %q is empty or missing", rec.Position, ErrLookupFailed, cols.Title)
	case rec.Authors == "":
		return "", fmt.Errorf("row %d: %w: column %q is empty or missing", rec.Position, ErrLookupFailed, cols.Authors)
	case c.lookup == nil:
		return "", fmt.Errorf("row %d: %w: no identifier lookup configured", rec.Position, ErrLookupFailed)
	}

	doi, err := c.lookup.LookupDOI(ctx, rec.Title, rec.Authors)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, ErrLookupFailed) {
			err = fmt.Errorf("%w: %v", ErrLookupFailed, err)
		}
		return "", err
	}
	return NormalizeDOI(doi), nil
}

// fail moves out to Failed and writes the error line. An interruption is
// recorded but not logged here; Run reports it once for the whole batch.
func (c *Controller) fail(log *slog.Logger, out types.Outcome, err error) types.Outcome {
	from := out.State
	out.State = types.StateFailed
	out.Err = err
	out.Kind = Kind(err)
	if out.Kind == types.FailureInterrupted {
		return out
	}
	log.Error("download failed", "stage", from, "kind", out.Kind, "err", err)
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
