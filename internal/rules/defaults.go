package rules

import "github.com/octobees/leads-generator/enricher/internal/entity"

var sharedReserved = []string{
	"share", "sharer", "sharer.php", "share.php", "dialog", "plugins", "intent",
	"login", "login.php", "signup", "register", "accounts", "account", "settings",
	"help", "support", "privacy", "policy", "policies", "terms", "legal", "cookies",
	"about", "ads", "business", "developers", "careers", "jobs", "press", "search",
	"home", "home.php", "explore", "hashtag", "l.php", "tr",
}

// Default returns the built-in rule tables.
func Default() *Rules {
	return &Rules{
		Platforms: []Platform{
			{
				Kind:            entity.KindFacebook,
				Hosts:           []string{"facebook.com", "fb.com"},
				CanonicalHost:   "facebook.com",
				ReservedPaths:   withShared("groups", "events", "watch", "gaming", "marketplace", "photo.php", "story.php", "permalink.php", "people"),
				KeepQuery:       []string{"id"},
				QueryProfiles:   []string{"profile.php"},
				CaseInsensitive: true,
			},
			{
				Kind:            entity.KindInstagram,
				Hosts:           []string{"instagram.com", "instagr.am"},
				CanonicalHost:   "instagram.com",
				ReservedPaths:   withShared("p", "reel", "reels", "stories", "tv", "direct"),
				KeepSegments:    1,
				CaseInsensitive: true,
			},
			{
				Kind:            entity.KindTwitter,
				Hosts:           []string{"twitter.com", "x.com"},
				CanonicalHost:   "twitter.com",
				ReservedPaths:   withShared("i", "messages", "notifications", "compose", "status"),
				KeepSegments:    1,
				CaseInsensitive: true,
			},
			{
				Kind:            entity.KindLinkedIn,
				Hosts:           []string{"linkedin.com"},
				CanonicalHost:   "linkedin.com",
				ReservedPaths:   withShared("feed", "shareArticle", "posts", "pulse"),
				ProfilePrefixes: []string{"company", "in", "school", "showcase"},
				KeepSegments:    2,
				CaseInsensitive: true,
			},
			{
				Kind:            entity.KindYouTube,
				Hosts:           []string{"youtube.com"},
				CanonicalHost:   "youtube.com",
				ReservedPaths:   withShared("watch", "shorts", "embed", "results", "playlist", "feed"),
				ProfilePrefixes: []string{"channel", "c", "user"},
				HandlePrefix:    "@",
				KeepSegments:    2,
			},
			{
				Kind:            entity.KindWhatsApp,
				Hosts:           []string{"wa.me", "whatsapp.com"},
				CanonicalHost:   "wa.me",
				ReservedPaths:   withShared("send", "download", "catalog"),
				ProfilePrefixes: []string{"message"},
				KeepSegments:    2,
				PhoneQuery:      "phone",
				PathHosts:       []string{"wa.me"},
				NumericProfiles: true,
			},
		},
		PlaceholderEmailDomains: []string{
			"example.com", "example.org", "example.net", "test.com", "domain.com",
			"sample.com", "demo.com", "placeholder.com", "email.com", "yourdomain.com",
			"yoursite.com", "website.com", "company.com", "sentry.io", "wixpress.com",
		},
		PlaceholderEmailLocals: []string{
			"test", "example", "user", "username", "email", "youremail", "yourname",
			"your", "name", "someone", "john.doe", "jane.doe", "johndoe", "noreply", "no-reply",
		},
		AssetSuffixes: []string{
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp",
			".css", ".js", ".woff", ".woff2", ".mp4",
		},
		TrackingPrefixes: []string{"utm_"},
		TrackingParams: []string{
			"fbclid", "gclid", "dclid", "msclkid", "igshid", "igsh", "mc_cid", "mc_eid",
			"ref", "ref_src", "ref_url", "si", "hl", "_ga",
		},
		FallbackPaths:   []string{"/contact", "/contact-us", "/about", "/about-us"},
		ContactKeywords: []string{"contact", "about", "kontak", "hubungi", "tentang", "impressum"},
		ServiceSubdomains: []string{
			"developers", "developer", "help", "business", "about", "support", "blog",
			"engineering", "investor", "investors", "newsroom", "careers", "status",
			"faq", "ads", "transparency", "chat",
		},
	}
}

func withShared(extra ...string) []string {
	out := make([]string, 0, len(sharedReserved)+len(extra))
	out = append(out, sharedReserved...)
	return append(out, extra...)
}
