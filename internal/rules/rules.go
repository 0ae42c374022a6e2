// Package rules holds the enumerated tables that drive contact extraction and
// validation: known platform hosts, placeholder values and tracking parameters.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/octobees/leads-generator/enricher/internal/entity"
)

// Platform describes how profile links of one social network look.
type Platform struct {
	Kind entity.ContactKind `yaml:"kind"`
	// Hosts are matched exactly or as a parent domain.
	Hosts         []string `yaml:"hosts"`
	CanonicalHost string   `yaml:"canonical_host"`
	// ReservedPaths are first path segments that never identify a profile
	// (share dialogs, login pages, help centres).
	ReservedPaths []string `yaml:"reserved_paths"`
	// ProfilePrefixes, when set, require the path to be <prefix>/<slug>.
	ProfilePrefixes []string `yaml:"profile_prefixes"`
	// HandlePrefix accepts a single segment such as "@acme" alongside ProfilePrefixes.
	HandlePrefix string `yaml:"handle_prefix"`
	// KeepSegments truncates the path to the first n segments. Zero keeps all.
	KeepSegments int `yaml:"keep_segments"`
	// KeepQuery lists query keys that are part of the profile identity.
	KeepQuery []string `yaml:"keep_query"`
	// QueryProfiles are first segments only valid with a KeepQuery key present.
	QueryProfiles []string `yaml:"query_profiles"`
	// PhoneQuery rewrites <host>/...?<key>=<digits> to <canonical_host>/<digits>.
	PhoneQuery string `yaml:"phone_query"`
	// PathHosts, when set, are the only hosts whose path identifies a
	// profile; the other hosts are accepted through PhoneQuery alone.
	PathHosts []string `yaml:"path_hosts"`
	// NumericProfiles accepts a single all-digit segment alongside ProfilePrefixes.
	NumericProfiles bool `yaml:"numeric_profiles"`
	CaseInsensitive bool `yaml:"case_insensitive"`
}

// Rules groups every table consumed by the extractor and the validator.
type Rules struct {
	Platforms               []Platform `yaml:"platforms"`
	PlaceholderEmailDomains []string   `yaml:"placeholder_email_domains"`
	PlaceholderEmailLocals  []string   `yaml:"placeholder_email_locals"`
	AssetSuffixes           []string   `yaml:"asset_suffixes"`
	TrackingPrefixes        []string   `yaml:"tracking_prefixes"`
	TrackingParams          []string   `yaml:"tracking_params"`
	FallbackPaths           []string   `yaml:"fallback_paths"`
	ContactKeywords         []string   `yaml:"contact_keywords"`
	// ServiceSubdomains are platform-owned subdomain labels (developers.,
	// help.) whose pages never identify a business.
	ServiceSubdomains []string `yaml:"service_subdomains"`
}

// Load reads a YAML rule file and merges it over the built-in defaults.
// An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	merged := base.Merge(override)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge returns a copy of r extended with other. Platforms are replaced by
// kind; every other table is extended with values not already present.
func (r *Rules) Merge(other Rules) *Rules {
	out := r.clone()
	for _, p := range other.Platforms {
		replaced := false
		for i := range out.Platforms {
			if out.Platforms[i].Kind == p.Kind {
				out.Platforms[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out.Platforms = append(out.Platforms, p)
		}
	}
	out.PlaceholderEmailDomains = appendUnique(out.PlaceholderEmailDomains, other.PlaceholderEmailDomains)
	out.PlaceholderEmailLocals = appendUnique(out.PlaceholderEmailLocals, other.PlaceholderEmailLocals)
	out.AssetSuffixes = appendUnique(out.AssetSuffixes, other.AssetSuffixes)
	out.TrackingPrefixes = appendUnique(out.TrackingPrefixes, other.TrackingPrefixes)
	out.TrackingParams = appendUnique(out.TrackingParams, other.TrackingParams)
	out.FallbackPaths = appendUnique(out.FallbackPaths, other.FallbackPaths)
	out.ContactKeywords = appendUnique(out.ContactKeywords, other.ContactKeywords)
	out.ServiceSubdomains = appendUnique(out.ServiceSubdomains, other.ServiceSubdomains)
	return out
}

// Validate checks that every platform entry is usable.
func (r *Rules) Validate() error {
	seen := make(map[entity.ContactKind]struct{}, len(r.Platforms))
	for _, p := range r.Platforms {
		if !p.Kind.IsSocial() {
			return fmt.Errorf("rules: unsupported platform kind %q", p.Kind)
		}
		if _, dup := seen[p.Kind]; dup {
			return fmt.Errorf("rules: platform %q declared twice", p.Kind)
		}
		seen[p.Kind] = struct{}{}
		if len(p.Hosts) == 0 {
			return fmt.Errorf("rules: platform %q has no hosts", p.Kind)
		}
		if p.KeepSegments < 0 {
			return fmt.Errorf("rules: platform %q has negative keep_segments", p.Kind)
		}
	}
	return nil
}

// PlatformForHost resolves the platform serving host, if any. Service
// subdomains such as developers.facebook.com resolve to none.
func (r *Rules) PlatformForHost(host string) (*Platform, bool) {
	p, sub := r.matchPlatform(host)
	if p == nil || r.isServiceSubdomain(sub) {
		return nil, false
	}
	return p, true
}

// IsPlatformService reports whether host is a platform-owned service
// subdomain rather than a profile host.
func (r *Rules) IsPlatformService(host string) bool {
	p, sub := r.matchPlatform(host)
	return p != nil && r.isServiceSubdomain(sub)
}

// IsPathHost reports whether profile paths on host identify a profile of p.
func (p *Platform) IsPathHost(host string) bool {
	if len(p.PathHosts) == 0 {
		return true
	}
	host = strings.ToLower(strings.Trim(host, "."))
	for _, h := range p.PathHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// matchPlatform returns the platform whose domain covers host and the
// subdomain part left of it.
func (r *Rules) matchPlatform(host string) (*Platform, string) {
	host = strings.ToLower(strings.Trim(strings.TrimSpace(host), "."))
	if host == "" {
		return nil, ""
	}
	for i := range r.Platforms {
		for _, domain := range r.Platforms[i].Hosts {
			if host == domain {
				return &r.Platforms[i], ""
			}
			if strings.HasSuffix(host, "."+domain) {
				return &r.Platforms[i], strings.TrimSuffix(host, "."+domain)
			}
		}
	}
	return nil, ""
}

func (r *Rules) isServiceSubdomain(sub string) bool {
	if sub == "" {
		return false
	}
	for _, label := range strings.Split(sub, ".") {
		if containsFold(r.ServiceSubdomains, label) {
			return true
		}
	}
	return false
}

// IsPlaceholderEmail reports whether the address is a decorative or sample value.
func (r *Rules) IsPlaceholderEmail(local, domain string) bool {
	local = strings.ToLower(local)
	domain = strings.ToLower(domain)
	for _, d := range r.PlaceholderEmailDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return containsFold(r.PlaceholderEmailLocals, local)
}

// IsAsset reports whether the value ends like a static asset file name.
func (r *Rules) IsAsset(value string) bool {
	value = strings.ToLower(value)
	for _, suffix := range r.AssetSuffixes {
		if strings.HasSuffix(value, suffix) {
			return true
		}
	}
	return false
}

// IsTrackingParam reports whether a query key only carries campaign tracking.
func (r *Rules) IsTrackingParam(key string) bool {
	key = strings.ToLower(key)
	for _, prefix := range r.TrackingPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return containsFold(r.TrackingParams, key)
}

// IsReservedPath reports whether segment is a non-profile first path segment.
func (p *Platform) IsReservedPath(segment string) bool {
	return containsFold(p.ReservedPaths, segment)
}

// IsProfilePrefix reports whether segment is one of the required profile prefixes.
func (p *Platform) IsProfilePrefix(segment string) bool {
	return containsFold(p.ProfilePrefixes, segment)
}

// IsQueryProfile reports whether segment needs a kept query key to be valid.
func (p *Platform) IsQueryProfile(segment string) bool {
	return containsFold(p.QueryProfiles, segment)
}

// KeepsQuery reports whether key belongs to the profile identity.
func (p *Platform) KeepsQuery(key string) bool {
	return containsFold(p.KeepQuery, key)
}

func (r *Rules) clone() *Rules {
	out := &Rules{
		Platforms:               make([]Platform, len(r.Platforms)),
		PlaceholderEmailDomains: append([]string(nil), r.PlaceholderEmailDomains...),
		PlaceholderEmailLocals:  append([]string(nil), r.PlaceholderEmailLocals...),
		AssetSuffixes:           append([]string(nil), r.AssetSuffixes...),
		TrackingPrefixes:        append([]string(nil), r.TrackingPrefixes...),
		TrackingParams:          append([]string(nil), r.TrackingParams...),
		FallbackPaths:           append([]string(nil), r.FallbackPaths...),
		ContactKeywords:         append([]string(nil), r.ContactKeywords...),
		ServiceSubdomains:       append([]string(nil), r.ServiceSubdomains...),
	}
	copy(out.Platforms, r.Platforms)
	return out
}

func appendUnique(dst, values []string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || containsFold(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
