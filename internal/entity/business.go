package entity

import (
	"strings"
	"time"
)

// BusinessRecord represents a business handed over by discovery and enriched with contact details.
type BusinessRecord struct {
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Rating      string   `json:"rating,omitempty"`
	ReviewCount string   `json:"review_count,omitempty"`
	Category    string   `json:"category,omitempty"`

	Email     string `json:"email,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`

	SearchTerm string     `json:"search_term,omitempty"`
	AreaName   string     `json:"area_name,omitempty"`
	ScrapedAt  *time.Time `json:"scraped_at,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r BusinessRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// HasWebsite reports whether the record carries a website to enrich from.
func (r BusinessRecord) HasWebsite() bool {
	return strings.TrimSpace(r.Website) != ""
}

// Contacts returns the contact fields currently populated on the record.
func (r BusinessRecord) Contacts() ContactDetails {
	return ContactDetails{
		Email:     r.Email,
		Phone:     r.Phone,
		Facebook:  r.Facebook,
		Instagram: r.Instagram,
		Twitter:   r.Twitter,
		LinkedIn:  r.LinkedIn,
		YouTube:   r.YouTube,
		WhatsApp:  r.WhatsApp,
	}
}

// Apply merges delta into the record. A field is set only when it is empty on
// the record and populated in the delta; existing values are never replaced.
// It returns the number of fields that were filled.
func (r *BusinessRecord) Apply(delta ContactDetails) int {
	filled := 0
	fill := func(dst *string, value string) {
		if strings.TrimSpace(*dst) != "" || strings.TrimSpace(value) == "" {
			return
		}
		*dst = value
		filled++
	}
	fill(&r.Email, delta.Email)
	fill(&r.Phone, delta.Phone)
	fill(&r.Facebook, delta.Facebook)
	fill(&r.Instagram, delta.Instagram)
	fill(&r.Twitter, delta.Twitter)
	fill(&r.LinkedIn, delta.LinkedIn)
	fill(&r.YouTube, delta.YouTube)
	fill(&r.WhatsApp, delta.WhatsApp)
	return filled
}
