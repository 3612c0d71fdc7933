// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// landingMetaNames are the meta tags publishers use to point at the full
// text PDF, in order of preference.
var landingMetaNames = []string{
	"citation_pdf_url",
	"eprints.document_url",
	"bepress_citation_pdf_url",
}

// landingPDFURL looks for a PDF link in an HTML landing page and resolves it
// against base. It returns "" when the page has none.
func landingPDFURL(base *url.URL, page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	for _, name := range landingMetaNames {
		content, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
		content = strings.TrimSpace(content)
		if !ok || content == "" {
			continue
		}
		ref, err := url.Parse(content)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			continue
		}
		return ref.String()
	}
	return ""
}
