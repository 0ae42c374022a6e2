// Package extractor harvests candidate emails, phones and social profile links
// from a single page of markup.
package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/rules"
)

const urlTrailingNoise = ".,;:!?)]}'\""

var (
	emailFinder   = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	obfuscatedAt  = regexp.MustCompile(`(?i)\s*[\[\(\{]\s*at\s*[\]\)\}]\s*`)
	obfuscatedDot = regexp.MustCompile(`(?i)\s*[\[\(\{]\s*dot\s*[\]\)\}]\s*`)
)

// URLFilter decides whether a link is worth keeping as the candidate for its kind.
type URLFilter func(kind entity.ContactKind, rawURL string) bool

// Extractor scans markup for contact candidates. It never fetches other pages.
type Extractor struct {
	rules      *rules.Rules
	filter     URLFilter
	socialText *regexp.Regexp
}

// Option configures optional behaviour.
type Option func(*Extractor)

// WithURLFilter skips social links the filter rejects, so a share button placed
// before the real profile link does not shadow it.
func WithURLFilter(filter URLFilter) Option {
	return func(x *Extractor) {
		x.filter = filter
	}
}

// New builds an extractor driven by the given rule tables.
func New(r *rules.Rules, opts ...Option) *Extractor {
	if r == nil {
		r = rules.Default()
	}
	x := &Extractor{
		rules:      r,
		socialText: compileSocialText(r),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract returns the contact candidates found on one page.
func (x *Extractor) Extract(markup, sourceURL string) []entity.CandidateContact {
	return x.ExtractFor(markup, sourceURL, "")
}

// ExtractFor is Extract with the business display name, used to discard
// addresses that are just the name rendered as an email.
func (x *Extractor) ExtractFor(markup, sourceURL, businessName string) []entity.CandidateContact {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(sourceURL)

	h := &harvest{
		x:          x,
		source:     sourceURL,
		nameKey:    squash(businessName),
		seenEmails: make(map[string]struct{}),
		seenPhones: make(map[string]struct{}),
		socials:    make(map[entity.ContactKind]struct{}),
	}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		h.anchor(base, strings.TrimSpace(href))
	})

	doc.Find("script, style, noscript, template").Remove()
	text := visibleText(doc)
	h.emailsFromText(deobfuscate(text))

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			if attr.Key == "href" || attr.Key == "src" || attr.Key == "srcset" {
				continue
			}
			if strings.Contains(attr.Val, "@") {
				h.emailsFromText(attr.Val)
			}
		}
	})

	h.socialsFromText(text)

	return h.out
}

// CandidatePages lists same-site links that look like contact or about pages,
// in document order and without duplicates.
func (x *Extractor) CandidatePages(markup, sourceURL string) []string {
	base, err := url.Parse(sourceURL)
	if err != nil || base.Host == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	self := stripFragment(base).String()
	seen := map[string]struct{}{self: {}}
	var pages []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		target := stripFragment(base.ResolveReference(ref))
		if target.Scheme != "http" && target.Scheme != "https" {
			return
		}
		if !sameSite(target.Hostname(), base.Hostname()) {
			return
		}
		label := strings.ToLower(target.Path + " " + s.Text())
		if !x.mentionsContact(label) {
			return
		}
		key := target.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		pages = append(pages, key)
	})
	return pages
}

func (x *Extractor) mentionsContact(label string) bool {
	for _, kw := range x.rules.ContactKeywords {
		if strings.Contains(label, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

type harvest struct {
	x          *Extractor
	source     string
	nameKey    string
	out        []entity.CandidateContact
	seenEmails map[string]struct{}
	seenPhones map[string]struct{}
	socials    map[entity.ContactKind]struct{}
}

func (h *harvest) anchor(base *url.URL, href string) {
	if href == "" {
		return
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		target := href[len("mailto:"):]
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		if decoded, err := url.PathUnescape(target); err == nil {
			target = decoded
		}
		for _, addr := range strings.Split(target, ",") {
			h.emailsFromText(addr)
		}
		return
	case strings.HasPrefix(lower, "tel:"):
		phone := strings.TrimSpace(href[len("tel:"):])
		if decoded, err := url.PathUnescape(phone); err == nil {
			phone = decoded
		}
		h.addPhone(phone)
		return
	case strings.HasPrefix(lower, "javascript:"), strings.HasPrefix(lower, "#"):
		return
	}

	if target, ok := h.x.resolveSocial(base, href); ok {
		h.addSocial(target)
	}
}

func (h *harvest) emailsFromText(text string) {
	for _, match := range emailFinder.FindAllString(text, -1) {
		email := strings.ToLower(strings.Trim(match, "."))
		if _, dup := h.seenEmails[email]; dup {
			continue
		}
		h.seenEmails[email] = struct{}{}
		if h.decorative(email) {
			continue
		}
		h.out = append(h.out, entity.CandidateContact{Kind: entity.KindEmail, Value: email, SourceURL: h.source})
	}
}

func (h *harvest) decorative(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return true
	}
	local, domain := email[:at], email[at+1:]
	if h.x.rules.IsAsset(email) || h.x.rules.IsPlaceholderEmail(local, domain) {
		return true
	}
	if h.nameKey == "" {
		return false
	}
	withoutTLD := domain
	if dot := strings.LastIndexByte(domain, '.'); dot > 0 {
		withoutTLD = domain[:dot]
	}
	return squash(email) == h.nameKey || squash(local+withoutTLD) == h.nameKey
}

func (h *harvest) addPhone(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if _, dup := h.seenPhones[raw]; dup {
		return
	}
	h.seenPhones[raw] = struct{}{}
	h.out = append(h.out, entity.CandidateContact{Kind: entity.KindPhone, Value: raw, SourceURL: h.source})
}

func (h *harvest) addSocial(target socialLink) {
	if _, found := h.socials[target.kind]; found {
		return
	}
	if h.x.filter != nil && !h.x.filter(target.kind, target.url) {
		return
	}
	h.socials[target.kind] = struct{}{}
	h.out = append(h.out, entity.CandidateContact{Kind: target.kind, Value: target.url, SourceURL: h.source})
}

func (h *harvest) socialsFromText(text string) {
	if h.x.socialText == nil || len(h.socials) == len(h.x.rules.Platforms) {
		return
	}
	for _, match := range h.x.socialText.FindAllString(text, -1) {
		match = strings.TrimRight(match, urlTrailingNoise)
		if target, ok := h.x.resolveSocial(nil, match); ok {
			h.addSocial(target)
		}
	}
}

type socialLink struct {
	kind entity.ContactKind
	url  string
}

func (x *Extractor) resolveSocial(base *url.URL, href string) (socialLink, bool) {
	var target *url.URL
	if !strings.Contains(href, "://") && !strings.HasPrefix(href, "/") {
		if u, err := url.Parse("https://" + href); err == nil && u.Host != "" {
			if _, ok := x.rules.PlatformForHost(u.Hostname()); ok {
				target = u
			}
		}
	}
	if target == nil {
		ref, err := url.Parse(href)
		if err != nil {
			return socialLink{}, false
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		target = ref
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return socialLink{}, false
	}
	platform, ok := x.rules.PlatformForHost(target.Hostname())
	if !ok {
		return socialLink{}, false
	}
	return socialLink{kind: platform.Kind, url: target.String()}, true
}

func compileSocialText(r *rules.Rules) *regexp.Regexp {
	var hosts []string
	for _, p := range r.Platforms {
		for _, h := range p.Hosts {
			hosts = append(hosts, regexp.QuoteMeta(h))
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	pattern := `(?i)\b(?:https?://)?(?:[a-z0-9-]+\.)*(?:` + strings.Join(hosts, "|") + `)/[^\s"'<>]+`
	return regexp.MustCompile(pattern)
}

// visibleText joins text nodes with line breaks so adjacent elements do not
// run together into one token.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return b.String()
}

func deobfuscate(text string) string {
	text = obfuscatedAt.ReplaceAllString(text, "@")
	return obfuscatedDot.ReplaceAllString(text, ".")
}

func squash(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripFragment(u *url.URL) *url.URL {
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	return &clone
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a != "" && a == b
}
