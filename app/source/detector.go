package source

import (
	"net/url"
	"strings"

	"github.com/lysyi3m/listing-comb/app/model"
)

const (
	ConfidenceExact    = 1.0
	ConfidenceHostOnly = 0.5
)

type Detection struct {
	Source     *model.Source `json:"source"`
	Confidence float64       `json:"confidence"`
	ExternalID string        `json:"extractedId,omitempty"`
	IsValid    bool          `json:"isValid"`
}

// Detect classifies rawURL against the registry. It never fails: malformed or
// unknown input yields an invalid detection with no source and zero confidence.
func (r *Registry) Detect(rawURL string) Detection {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return Detection{}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	query := u.Query()

	for _, e := range r.snapshot() {
		if !e.source.Enabled {
			continue
		}

		hostMatched := false
		bestWeight := -1
		bestID := ""

		for _, p := range e.patterns {
			if p.host == WildcardHost {
				if id, ok := p.structural(u.Path, query); ok && p.weight > bestWeight {
					bestWeight, bestID = p.weight, id
				}
				continue
			}
			if !matchesHost(host, p.host) {
				continue
			}
			hostMatched = true
			if id, ok := p.structural(u.Path, query); ok && p.weight > bestWeight {
				bestWeight, bestID = p.weight, id
			}
		}

		src := e.source
		if bestWeight >= 0 {
			return Detection{Source: &src, Confidence: ConfidenceExact, ExternalID: bestID, IsValid: true}
		}
		if hostMatched {
			return Detection{Source: &src, Confidence: ConfidenceHostOnly, IsValid: true}
		}
	}

	return Detection{}
}

// structural reports whether the path and query carry an item id for this pattern.
func (p pattern) structural(path string, query url.Values) (string, bool) {
	id := ""
	if p.path != nil {
		m := p.path.FindStringSubmatch(path)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			id = m[1]
		} else {
			id = m[0]
		}
	}
	if p.idParam != "" {
		id = strings.TrimSpace(query.Get(p.idParam))
	}
	if id == "" {
		return "", false
	}
	return id, true
}

func matchesHost(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func parseHTTPURL(rawURL string) (*url.URL, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}
