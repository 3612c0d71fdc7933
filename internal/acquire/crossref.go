// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// IdentifierLookup finds a DOI for a free-text title and author list.
type IdentifierLookup interface {
	LookupDOI(ctx context.Context, title, authors string) (string, error)
}

// CrossRefBaseURL is the CrossRef works search endpoint.
const CrossRefBaseURL = "https://api.crossref.org/works"

// crossrefSearchResponse captures the DOI field of a works search.
type crossrefSearchResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []struct {
			DOI string `json:"DOI"`
		} `json:"items"`
	} `json:"message"`
}

// CrossRefClient looks up DOIs through the CrossRef bibliographic search.
type CrossRefClient struct {
	api apiClient
}

var _ IdentifierLookup = (*CrossRefClient)(nil)

// NewCrossRefClient creates an identifier lookup client.
func NewCrossRefClient(cfg types.ResolverConfig, opts ...ClientOption) *CrossRefClient {
	return &CrossRefClient{api: newAPIClient(CrossRefBaseURL, cfg, opts)}
}

// LookupDOI queries CrossRef with title and authors as free-text fields and
// returns the DOI of the first result. There is no scoring: the top hit is
// trusted. Every failure wraps ErrLookupFailed.
func (c *CrossRefClient) LookupDOI(ctx context.Context, title, authors string) (string, error) {
	title = norm.NFC.String(strings.TrimSpace(title))
	authors = norm.NFC.String(strings.TrimSpace(authors))
	if title == "" || authors == "" {
		return "", fmt.Errorf("%w: title and authors are required", ErrLookupFailed)
	}

	q := url.Values{}
	q.Set("query.title", title)
	q.Set("query.author", authors)
	q.Set("select", "DOI")
	q.Set("rows", "1")
	if c.api.email != "" {
		q.Set("mailto", c.api.email)
	}
	apiURL := c.api.baseURL + "?" + q.Encode()

	var res crossrefSearchResponse
	if err := c.api.getJSON(ctx, apiURL, &res); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: crossref: %v", ErrLookupFailed, err)
	}
	if len(res.Message.Items) == 0 {
		return "", fmt.Errorf("%w: no crossref results for %q", ErrLookupFailed, title)
	}
	doi := strings.TrimSpace(res.Message.Items[0].DOI)
	if doi == "" {
		return "", fmt.Errorf("%w: crossref result has no DOI", ErrLookupFailed)
	}
	return doi, nil
}
