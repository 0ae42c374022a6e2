package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/rules"
)

func valuesByKind(candidates []entity.CandidateContact) map[entity.ContactKind][]string {
	out := make(map[entity.ContactKind][]string)
	for _, c := range candidates {
		out[c.Kind] = append(out[c.Kind], c.Value)
	}
	return out
}

func TestExtractHomepage(t *testing.T) {
	markup := `<html><body>
		<header><a href="/">Home</a><a href="https://facebook.com/acmecafe">Facebook</a></header>
		<p>Write to us: contact@acmecafe.test</p>
		<footer>
			<a href="https://www.facebook.com/acme-other">Other page</a>
			<a href="//instagram.com/acmecafe/">IG</a>
			<a href="twitter.com/acmecafe">Twitter</a>
			<a href="tel:+62-21-555-0101">Call</a>
		</footer>
	</body></html>`

	got := valuesByKind(New(rules.Default()).Extract(markup, "http://acme.test/"))

	assert.Equal(t, []string{"contact@acmecafe.test"}, got[entity.KindEmail])
	assert.Equal(t, []string{"https://facebook.com/acmecafe"}, got[entity.KindFacebook])
	assert.Equal(t, []string{"http://instagram.com/acmecafe/"}, got[entity.KindInstagram])
	assert.Equal(t, []string{"https://twitter.com/acmecafe"}, got[entity.KindTwitter])
	assert.Equal(t, []string{"+62-21-555-0101"}, got[entity.KindPhone])
}

func TestExtractEmails(t *testing.T) {
	markup := `<html><body>
		<a href="mailto:Sales@RealBusiness.co?subject=Hi">Email</a>
		<img src="/img/logo@2x.png" alt="logo@2x.png">
		<p>Sample: info@example.com</p>
		<p>Support: help [at] realbusiness [dot] co</p>
		<div data-contact="owner@realbusiness.co"></div>
		<p>acme@cafe.com</p>
		<span>team@realbusiness.co</span><span>Phone</span>
		<script>var x = "tracker@sentry.io";</script>
	</body></html>`

	got := New(rules.Default()).ExtractFor(markup, "https://realbusiness.co", "Acme Cafe")
	emails := valuesByKind(got)[entity.KindEmail]

	assert.Equal(t, []string{
		"sales@realbusiness.co",
		"help@realbusiness.co",
		"team@realbusiness.co",
		"owner@realbusiness.co",
	}, emails)
	for _, c := range got {
		assert.Equal(t, "https://realbusiness.co", c.SourceURL)
	}
}

func TestExtractKeepsFirstLinkPerPlatform(t *testing.T) {
	markup := `<a href="https://facebook.com/first">a</a><a href="https://facebook.com/second">b</a>`

	got := valuesByKind(New(rules.Default()).Extract(markup, "https://acme.test"))
	assert.Equal(t, []string{"https://facebook.com/first"}, got[entity.KindFacebook])
}

func TestExtractURLFilterSkipsShareLinks(t *testing.T) {
	markup := `
		<a href="https://www.facebook.com/sharer/sharer.php?u=https://acme.test">Share</a>
		<a href="https://facebook.com/acmecafe">Like us</a>`

	filter := func(kind entity.ContactKind, raw string) bool {
		return !strings.Contains(raw, "sharer")
	}
	got := valuesByKind(New(rules.Default(), WithURLFilter(filter)).Extract(markup, "https://acme.test"))
	assert.Equal(t, []string{"https://facebook.com/acmecafe"}, got[entity.KindFacebook])
}

func TestExtractRawTextFallback(t *testing.T) {
	markup := `<html><body>
		<a href="https://instagram.com/acme_anchor">IG</a>
		<p>Find us on instagram.com/acme_text and wa.me/6281234567890.</p>
		<p>notfacebook.com/acme is not ours</p>
	</body></html>`

	got := valuesByKind(New(rules.Default()).Extract(markup, "https://acme.test"))
	assert.Equal(t, []string{"https://instagram.com/acme_anchor"}, got[entity.KindInstagram])
	assert.Equal(t, []string{"https://wa.me/6281234567890"}, got[entity.KindWhatsApp])
	assert.Empty(t, got[entity.KindFacebook])
}

func TestExtractIgnoresNonPlatformLinks(t *testing.T) {
	markup := `<a href="https://acme.test/menu">Menu</a><a href="javascript:void(0)">x</a><a href="#top">top</a>`
	assert.Empty(t, New(nil).Extract(markup, "https://acme.test"))
}

func TestCandidatePages(t *testing.T) {
	markup := `<html><body>
		<a href="/">Home</a>
		<a href="/menu">Menu</a>
		<a href="/contact-us#form">Get in touch</a>
		<a href="https://www.acme.test/tentang-kami">Tentang</a>
		<a href="/reach">Contact</a>
		<a href="/contact-us">Contact again</a>
		<a href="https://other.test/contact">Elsewhere</a>
		<a href="mailto:contact@acme.test">Mail</a>
	</body></html>`

	pages := New(rules.Default()).CandidatePages(markup, "https://acme.test/")
	require.Equal(t, []string{
		"https://acme.test/contact-us",
		"https://www.acme.test/tentang-kami",
		"https://acme.test/reach",
	}, pages)

	assert.Nil(t, New(nil).CandidatePages(markup, "::bad"))
}
