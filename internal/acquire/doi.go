// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"regexp"
	"strings"
)

// DOIRefBase is prefixed to a DOI to build a resolvable reference for logs.
const DOIRefBase = "https://doi.org/"

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are resolver forms people paste into spreadsheets.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI trims whitespace and strips a leading resolver URL or "doi:"
// prefix. Anything else is kept as written; the resolver decides whether it
// knows the identifier.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// LooksLikeDOI reports whether s has the shape of a bare DOI.
func LooksLikeDOI(s string) bool {
	return doiPattern.MatchString(s)
}

// DOIRef returns the https://doi.org/ link for doi, or "" for an empty doi.
func DOIRef(doi string) string {
	if doi == "" {
		return ""
	}
	return DOIRefBase + doi
}

// escapeDOIPath escapes each segment of doi for use in a URL path, keeping
// the slashes that separate prefix and suffix.
func escapeDOIPath(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
