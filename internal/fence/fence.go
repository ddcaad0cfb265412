// Package fence constrains the research analyst's web access to an
// allowlisted set of domains and a fixed list of geographic targets.
//
// The fence is defense in depth: queries are augmented with geo keywords
// and the domain allowlist is passed to the search backend as a
// constraint, and every URL the agent tries to open is checked again with
// IsDomainAllowed before any fetch.
package fence

import (
	"fmt"
	"net/url"
	"strings"
)

// GeoTarget is one geographic research focus area.
type GeoTarget struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Lat      float64  `json:"lat" yaml:"lat"`
	Lng      float64  `json:"lng" yaml:"lng"`
	RadiusKm float64  `json:"radius_km" yaml:"radius_km"`
}

// Config holds the static fence configuration.
type Config struct {
	GeoTargets         []GeoTarget `yaml:"geo_targets"`
	AllowlistedDomains []string    `yaml:"allowlisted_domains"`
}

// DefaultConfig returns the built-in fence: the launch markets and the
// vetted local-news and hospitality sources for each.
func DefaultConfig() Config {
	return Config{
		GeoTargets: []GeoTarget{
			{
				ID:       "MT-VLT",
				Label:    "Valletta, Malta",
				Keywords: []string{"Valletta", "Sliema", "St Julian's", "Malta"},
				Lat:      35.8989, Lng: 14.5146, RadiusKm: 15,
			},
			{
				ID:       "RW-KGL",
				Label:    "Kigali, Rwanda",
				Keywords: []string{"Kigali", "Remera", "Kimihurura", "Nyarutarama"},
				Lat:      -1.9536, Lng: 30.0606, RadiusKm: 20,
			},
			{
				ID:       "KE-NBO",
				Label:    "Nairobi, Kenya",
				Keywords: []string{"Nairobi", "Westlands", "Kilimani", "Karen"},
				Lat:      -1.2864, Lng: 36.8172, RadiusKm: 25,
			},
		},
		AllowlistedDomains: []string{
			"timesofmalta.com",
			"maltatoday.com.mt",
			"newtimes.co.rw",
			"ktpress.rw",
			"nation.africa",
			"businessdailyafrica.com",
			"tripadvisor.com",
			"eatout.co.ke",
		},
	}
}

// Fence is the compiled fence. Read-only after construction.
type Fence struct {
	geos    map[string]GeoTarget
	domains []string
}

// New builds a Fence from configuration.
func New(cfg Config) *Fence {
	f := &Fence{
		geos:    make(map[string]GeoTarget, len(cfg.GeoTargets)),
		domains: append([]string(nil), cfg.AllowlistedDomains...),
	}
	for _, g := range cfg.GeoTargets {
		f.geos[g.ID] = g
	}
	return f
}

// Domains returns the domain allowlist, for passing to the search backend
// as a query constraint.
func (f *Fence) Domains() []string {
	return f.domains
}

// IsDomainAllowed reports whether the URL's hostname equals, or is a true
// subdomain of, an allowlisted domain. Malformed URLs and URLs without a
// hostname are denied — the check fails closed and never panics on
// user-controlled input.
func (f *Fence) IsDomainAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range f.domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ResolveGeo looks up a geo target by id. Unknown ids are an explicit
// policy-denial error, never silently ignored.
func (f *Fence) ResolveGeo(geoID string) (GeoTarget, error) {
	g, ok := f.geos[geoID]
	if !ok {
		return GeoTarget{}, fmt.Errorf("unknown geo target %q", geoID)
	}
	return g, nil
}

// AugmentQuery ANDs the geo target's keyword disjunction into the
// caller's query so the search backend stays inside the geography fence.
func AugmentQuery(query string, geo GeoTarget) string {
	if len(geo.Keywords) == 0 {
		return query
	}
	quoted := make([]string, len(geo.Keywords))
	for i, k := range geo.Keywords {
		quoted[i] = `"` + k + `"`
	}
	return fmt.Sprintf("(%s) AND (%s)", query, strings.Join(quoted, " OR "))
}
