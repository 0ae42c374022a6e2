// Package validator filters harvested contact candidates and reduces surviving
// values to a canonical form.
package validator

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/rules"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	defaultPhoneRegion = "ID"
	mxLookupTimeout    = 3 * time.Second
)

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// Validator applies the rule tables to candidates.
type Validator struct {
	rules       *rules.Rules
	region      string
	checkMX     bool
	dnsResolver DNSResolver
}

// Option configures optional dependencies.
type Option func(*Validator)

// WithDefaultRegion sets the region used to parse national phone numbers.
func WithDefaultRegion(region string) Option {
	return func(v *Validator) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			v.region = region
		}
	}
}

// WithMXCheck requires email domains to publish MX records.
func WithMXCheck(enabled bool) Option {
	return func(v *Validator) {
		v.checkMX = enabled
	}
}

// WithDNSResolver overrides the default DNS resolver.
func WithDNSResolver(resolver DNSResolver) Option {
	return func(v *Validator) {
		if resolver != nil {
			v.dnsResolver = resolver
		}
	}
}

// New builds a validator over the given rule tables.
func New(r *rules.Rules, opts ...Option) *Validator {
	if r == nil {
		r = rules.Default()
	}
	v := &Validator{
		rules:       r,
		region:      defaultPhoneRegion,
		dnsResolver: systemDNSResolver{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate drops placeholder and malformed candidates and normalizes the rest.
// Rejections are silent; the order of surviving candidates is preserved.
func (v *Validator) Validate(ctx context.Context, candidates []entity.CandidateContact) []entity.CandidateContact {
	if len(candidates) == 0 {
		return nil
	}
	seen := make(map[entity.CandidateContact]struct{}, len(candidates))
	mxCache := make(map[string]bool)
	valid := make([]entity.CandidateContact, 0, len(candidates))

	for _, c := range candidates {
		var value string
		switch {
		case c.Kind == entity.KindEmail:
			value = v.cleanEmail(ctx, c.Value, mxCache)
		case c.Kind == entity.KindPhone:
			value = normalizePhone(c.Value, v.region)
		case c.Kind.IsSocial():
			value, _ = v.profileURL(c.Kind, c.Value)
		}
		if value == "" {
			continue
		}
		key := entity.CandidateContact{Kind: c.Kind, Value: value}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, entity.CandidateContact{Kind: c.Kind, Value: value, SourceURL: c.SourceURL})
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

// Accepts reports whether raw is a usable profile link for kind.
func (v *Validator) Accepts(kind entity.ContactKind, raw string) bool {
	_, ok := v.profileURL(kind, raw)
	return ok
}

// Details keeps the first validated value of each kind.
func Details(validated []entity.CandidateContact) entity.ContactDetails {
	var d entity.ContactDetails
	for _, c := range validated {
		if d.Get(c.Kind) == "" {
			d.Set(c.Kind, c.Value)
		}
	}
	return d
}

func (v *Validator) profileURL(kind entity.ContactKind, raw string) (string, bool) {
	u, err := sanitizeURL(raw)
	if err != nil {
		return "", false
	}
	platform, ok := v.rules.PlatformForHost(u.Hostname())
	if !ok || platform.Kind != kind {
		return "", false
	}
	return canonicalProfile(platform, u)
}

func (v *Validator) cleanEmail(ctx context.Context, raw string, mxCache map[string]bool) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	email = strings.TrimPrefix(email, "mailto:")
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	local, domain := email[:at], strings.Trim(email[at+1:], ".")
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || asciiDomain == "" {
		return ""
	}
	email = local + "@" + asciiDomain
	if !emailPattern.MatchString(email) || !isDomainValid(asciiDomain) {
		return ""
	}
	if v.rules.IsAsset(email) || v.rules.IsPlaceholderEmail(local, asciiDomain) {
		return ""
	}
	if v.checkMX {
		ok, cached := mxCache[asciiDomain]
		if !cached {
			ok = v.hasMXRecord(ctx, asciiDomain)
			mxCache[asciiDomain] = ok
		}
		if !ok {
			return ""
		}
	}
	return email
}

func (v *Validator) hasMXRecord(ctx context.Context, domain string) bool {
	if v.dnsResolver == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, mxLookupTimeout)
	defer cancel()
	records, err := v.dnsResolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
