// Package scoring ranks enriched businesses as sales leads.
package scoring

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/octobees/leads-generator/enricher/internal/entity"
)

const (
	categoryContact  = "contact_completeness"
	categorySocial   = "social_presence"
	categoryWebsite  = "website_quality"
	categoryBusiness = "business_profile"
)

var freeHostingDomains = []string{
	"wordpress.com",
	"blogspot.com",
	"wixsite.com",
	"weebly.com",
	"squarespace.com",
	"business.site",
	"godaddysites.com",
	"notion.site",
	"linktr.ee",
	"googlepages.com",
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// Score evaluates how reachable and established a business looks. The total is
// within [0, 100].
func Score(record entity.BusinessRecord) ScoreResult {
	breakdown := map[string]int{
		categoryContact:  scoreContact(record),
		categorySocial:   scoreSocial(record),
		categoryWebsite:  scoreWebsite(record.Website),
		categoryBusiness: scoreBusiness(record),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}
	return ScoreResult{Total: total, Breakdown: breakdown}
}

func scoreContact(record entity.BusinessRecord) int {
	score := 0
	if present(record.Email) {
		score += 12
	}
	if present(record.Phone) {
		score += 10
	}
	if present(record.WhatsApp) {
		score += 8
	}
	return min(score, 30)
}

func scoreSocial(record entity.BusinessRecord) int {
	score := 0
	for _, kind := range entity.SocialKinds() {
		if kind == entity.KindWhatsApp {
			continue
		}
		if present(record.Contacts().Get(kind)) {
			score += 5
		}
	}
	return min(score, 20)
}

func scoreWebsite(website string) int {
	if !present(website) {
		return 0
	}
	score := 5
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(website)), "https://") {
		score += 5
	}
	if highQualityDomain(website) {
		score += 10
	}
	return min(score, 20)
}

func scoreBusiness(record entity.BusinessRecord) int {
	score := 0
	if hasCompleteAddress(record.Address) {
		score += 10
	}
	if rating, ok := parseRating(record.Rating); ok && rating >= 4.0 {
		score += 10
	}
	switch reviews := parseReviewCount(record.ReviewCount); {
	case reviews >= 50:
		score += 10
	case reviews >= 10:
		score += 5
	}
	return min(score, 30)
}

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}

func parseRating(raw string) (float64, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	return value, err == nil
}

func parseReviewCount(raw string) int {
	count := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			count = count*10 + int(r-'0')
		}
	}
	return count
}

func hasCompleteAddress(raw string) bool {
	addr := strings.TrimSpace(raw)
	if len(addr) < 10 {
		return false
	}
	var hasLetter, hasDigit bool
	separatorCount := 0
	for _, r := range addr {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == ',':
			separatorCount++
		}
	}
	return hasLetter && hasDigit && separatorCount >= 1
}

func highQualityDomain(raw string) bool {
	domain := extractDomain(raw)
	if domain == "" {
		return false
	}
	for _, bad := range freeHostingDomains {
		if domain == bad || strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return strings.Contains(domain, ".")
}

func extractDomain(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
