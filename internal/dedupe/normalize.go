package dedupe

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/octobees/leads-generator/enricher/internal/entity"
)

// Key derives the exact-match identity of a record: lowercased,
// whitespace-collapsed name and address plus the coordinate bucket.
func Key(r entity.BusinessRecord, precision int) string {
	return nameAddressKey(r) + "|" + coordinateBucket(r, precision)
}

// NameSimilarity scores two business names in [0,1] using edit distance over
// folded names, ignoring case, accents and punctuation.
func NameSimilarity(a, b string) float64 {
	return similarity(foldName(a), foldName(b))
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(distance)/float64(maxLen)
}

func nameAddressKey(r entity.BusinessRecord) string {
	return collapse(r.Name) + "|" + collapse(r.Address)
}

func coordinateBucket(r entity.BusinessRecord, precision int) string {
	if !r.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("%.*f,%.*f", precision, roundTo(*r.Latitude, precision), precision, roundTo(*r.Longitude, precision))
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(v*scale) / scale
	if rounded == 0 {
		return 0
	}
	return rounded
}

func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// foldName strips accents and punctuation so "Acme Café!" and "acme cafe" compare equal.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
