package validator

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/octobees/leads-generator/enricher/internal/rules"
)

// Normalize returns the canonical form of a URL, or "" when the URL is unusable.
// Platform links are reduced to their profile identity and rejected when they
// carry none; other links get a forced https scheme, a lowercase host and no
// tracking parameters. Normalize(Normalize(u)) == Normalize(u).
func (v *Validator) Normalize(raw string) string {
	u, err := sanitizeURL(raw)
	if err != nil {
		return ""
	}
	if v.rules.IsPlatformService(u.Hostname()) {
		return ""
	}
	if platform, ok := v.rules.PlatformForHost(u.Hostname()); ok {
		out, _ := canonicalProfile(platform, u)
		return out
	}
	return v.canonicalSite(u)
}

func (v *Validator) canonicalSite(u *url.URL) string {
	host := strings.ToLower(strings.Trim(u.Hostname(), "."))
	if ascii, err := idnaProfile.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	if port := u.Port(); port != "" && port != "443" && port != "80" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	query := u.Query()
	for key := range query {
		if v.rules.IsTrackingParam(key) {
			query.Del(key)
		}
	}

	out := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     strings.TrimRight(u.Path, "/"),
		RawQuery: query.Encode(),
	}
	return out.String()
}

func canonicalProfile(p *rules.Platform, u *url.URL) (string, bool) {
	segments := splitPath(u.Path)
	query := u.Query()

	if p.PhoneQuery != "" {
		if phone := digitsOnly(query.Get(p.PhoneQuery)); phone != "" {
			segments = []string{phone}
			query = url.Values{}
		} else if !p.IsPathHost(u.Hostname()) {
			return "", false
		} else if len(segments) == 1 && isPhoneLike(segments[0]) {
			segments = []string{digitsOnly(segments[0])}
		}
	} else if !p.IsPathHost(u.Hostname()) {
		return "", false
	}

	if len(segments) == 0 {
		return "", false
	}
	first := segments[0]
	if p.IsReservedPath(first) {
		return "", false
	}

	kept := url.Values{}
	if len(p.QueryProfiles) == 0 || p.IsQueryProfile(first) {
		for key, values := range query {
			if p.KeepsQuery(key) && len(values) > 0 && strings.TrimSpace(values[0]) != "" {
				kept.Set(strings.ToLower(key), strings.TrimSpace(values[0]))
			}
		}
	}
	if p.IsQueryProfile(first) && len(kept) == 0 {
		return "", false
	}

	switch {
	case len(p.ProfilePrefixes) == 0:
		if p.KeepSegments > 0 && len(segments) > p.KeepSegments {
			segments = segments[:p.KeepSegments]
		}
	case p.IsProfilePrefix(first) && len(segments) >= 2:
		segments[0] = strings.ToLower(first)
		if p.KeepSegments > 0 && len(segments) > p.KeepSegments {
			segments = segments[:p.KeepSegments]
		}
	case p.HandlePrefix != "" && strings.HasPrefix(first, p.HandlePrefix) && len(first) > len(p.HandlePrefix):
		segments = segments[:1]
	case p.NumericProfiles && len(segments) == 1 && digitsOnly(first) == first:
		segments = segments[:1]
	default:
		return "", false
	}

	if p.CaseInsensitive {
		for i := range segments {
			segments[i] = strings.ToLower(segments[i])
		}
	}

	host := p.CanonicalHost
	if host == "" {
		host = p.Hosts[0]
	}
	out := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/" + strings.Join(segments, "/"),
		RawQuery: kept.Encode(),
	}
	return out.String(), true
}

func sanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if i := strings.IndexByte(raw, ':'); i > 0 && nonWebSchemes[strings.ToLower(raw[:i])] {
		return nil, errors.New("unsupported scheme")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid url")
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return nil, errors.New("unsupported scheme")
	}
	u.Scheme = "https"
	return u, nil
}

var nonWebSchemes = map[string]bool{
	"mailto":     true,
	"tel":        true,
	"sms":        true,
	"javascript": true,
	"data":       true,
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPhoneLike(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '.' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 6
}
