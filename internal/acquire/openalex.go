// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// OpenAlexBaseURL is the OpenAlex works endpoint.
const OpenAlexBaseURL = "https://api.openalex.org/works/"

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	BestOALocation *openAlexLocation  `json:"best_oa_location"`
	Locations      []openAlexLocation `json:"locations"`
}

// openAlexLocation represents one hosting location of a work.
type openAlexLocation struct {
	IsOA       bool   `json:"is_oa"`
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
	Version    string `json:"version"`
	Source     *struct {
		Type string `json:"type"`
	} `json:"source"`
}

// OpenAlexClient resolves DOIs against OpenAlex.
type OpenAlexClient struct {
	api apiClient
}

var _ Resolver = (*OpenAlexClient)(nil)

// NewOpenAlexClient creates a resolver backed by OpenAlex.
func NewOpenAlexClient(cfg types.ResolverConfig, opts ...ClientOption) *OpenAlexClient {
	return &OpenAlexClient{api: newAPIClient(OpenAlexBaseURL, cfg, opts)}
}

// Resolve maps best_oa_location to the primary candidate and every other
// open-access location to alternates, with the same error kinds as the
// Unpaywall resolver.
func (c *OpenAlexClient) Resolve(ctx context.Context, doi string) (types.Resolution, error) {
	doi = strings.TrimSpace(doi)
	apiURL := strings.TrimSuffix(c.api.baseURL, "/") + "/" + DOIRefBase + escapeDOIPath(doi)
	if c.api.email != "" {
		apiURL += "?mailto=" + url.QueryEscape(c.api.email)
	}

	var work openAlexResponse
	if err := c.api.getJSON(ctx, apiURL, &work); err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return types.Resolution{}, fmt.Errorf("openalex %s: %w", doi, ErrNotFound)
		}
		return types.Resolution{}, fmt.Errorf("openalex %s: %w", doi, err)
	}

	var list candidateList
	if work.BestOALocation != nil {
		list.add(c.candidate(*work.BestOALocation, types.RankPrimary))
	}
	for _, loc := range work.Locations {
		if !loc.IsOA {
			continue
		}
		list.add(c.candidate(loc, types.RankAlternate))
	}
	if list.empty() {
		return types.Resolution{}, fmt.Errorf("openalex %s: %w", doi, ErrNoOpenAccess)
	}
	return list.resolution(doi), nil
}

func (c *OpenAlexClient) candidate(loc openAlexLocation, rank types.Rank) types.Candidate {
	u := loc.PDFURL
	if u == "" && c.api.landingPages {
		u = loc.LandingURL
	}
	cand := types.Candidate{URL: u, Rank: rank, Version: loc.Version}
	if loc.Source != nil {
		cand.HostType = loc.Source.Type
	}
	return cand
}
