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

// Resolver turns a DOI into ordered candidate download URLs.
type Resolver interface {
	Resolve(ctx context.Context, doi string) (types.Resolution, error)
}

// UnpaywallBaseURL is the Unpaywall v2 API endpoint.
const UnpaywallBaseURL = "https://api.unpaywall.org/v2/"

// unpaywallResponse captures the fields we need from an Unpaywall record.
type unpaywallResponse struct {
	DOI            string              `json:"doi"`
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URL               string `json:"url"`
	URLForPDF         string `json:"url_for_pdf"`
	URLForLandingPage string `json:"url_for_landing_page"`
	HostType          string `json:"host_type"`
	Version           string `json:"version"`
}

// UnpaywallClient resolves DOIs against the Unpaywall database.
type UnpaywallClient struct {
	api apiClient
}

var _ Resolver = (*UnpaywallClient)(nil)

// NewUnpaywallClient creates a resolver. Unpaywall requires cfg.Email.
func NewUnpaywallClient(cfg types.ResolverConfig, opts ...ClientOption) *UnpaywallClient {
	return &UnpaywallClient{api: newAPIClient(UnpaywallBaseURL, cfg, opts)}
}

// Resolve returns the best open-access location as the primary candidate and
// every other location, in service order, as alternates. It returns an error
// wrapping ErrNotFound when Unpaywall has no record for doi and one wrapping
// ErrNoOpenAccess when the record lists no retrievable location.
func (c *UnpaywallClient) Resolve(ctx context.Context, doi string) (types.Resolution, error) {
	doi = strings.TrimSpace(doi)
	apiURL := strings.TrimSuffix(c.api.baseURL, "/") + "/" + escapeDOIPath(doi) +
		"?email=" + url.QueryEscape(c.api.email)

	var rec unpaywallResponse
	if err := c.api.getJSON(ctx, apiURL, &rec); err != nil {
		var te *TransportError
		if errors.As(err, &te) && (te.StatusCode == http.StatusNotFound || te.StatusCode == http.StatusUnprocessableEntity) {
			return types.Resolution{}, fmt.Errorf("unpaywall %s: %w", doi, ErrNotFound)
		}
		return types.Resolution{}, fmt.Errorf("unpaywall %s: %w", doi, err)
	}

	var list candidateList
	if rec.BestOALocation != nil {
		list.add(c.candidate(*rec.BestOALocation, types.RankPrimary))
	}
	for _, loc := range rec.OALocations {
		list.add(c.candidate(loc, types.RankAlternate))
	}
	if list.empty() {
		return types.Resolution{}, fmt.Errorf("unpaywall %s: %w", doi, ErrNoOpenAccess)
	}
	return list.resolution(doi), nil
}

func (c *UnpaywallClient) candidate(loc unpaywallLocation, rank types.Rank) types.Candidate {
	u := loc.URLForPDF
	if u == "" && c.api.landingPages {
		u = loc.URLForLandingPage
		if u == "" {
			u = loc.URL
		}
	}
	return types.Candidate{URL: u, Rank: rank, HostType: loc.HostType, Version: loc.Version}
}
