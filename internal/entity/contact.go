package entity

// ContactKind identifies the type of a harvested contact value.
type ContactKind string

const (
	KindEmail     ContactKind = "email"
	KindPhone     ContactKind = "phone"
	KindFacebook  ContactKind = "facebook"
	KindInstagram ContactKind = "instagram"
	KindTwitter   ContactKind = "twitter"
	KindLinkedIn  ContactKind = "linkedin"
	KindYouTube   ContactKind = "youtube"
	KindWhatsApp  ContactKind = "whatsapp"
)

var socialKinds = []ContactKind{
	KindFacebook,
	KindInstagram,
	KindTwitter,
	KindLinkedIn,
	KindYouTube,
	KindWhatsApp,
}

// SocialKinds lists the supported social platforms in a stable order.
func SocialKinds() []ContactKind {
	return append([]ContactKind(nil), socialKinds...)
}

// IsSocial reports whether the kind is a social platform.
func (k ContactKind) IsSocial() bool {
	for _, kind := range socialKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Valid reports whether the kind is known.
func (k ContactKind) Valid() bool {
	return k == KindEmail || k == KindPhone || k.IsSocial()
}

// CandidateContact is a raw value harvested from a single page.
type CandidateContact struct {
	Kind      ContactKind `json:"kind"`
	Value     string      `json:"value"`
	SourceURL string      `json:"source_url"`
}

// ContactDetails holds at most one value per contact kind.
type ContactDetails struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
}

// Get returns the value stored for kind.
func (d ContactDetails) Get(kind ContactKind) string {
	if p := d.slot(kind); p != nil {
		return *p
	}
	return ""
}

// Set stores value for kind. Unknown kinds are ignored.
func (d *ContactDetails) Set(kind ContactKind, value string) {
	if p := d.slot(kind); p != nil {
		*p = value
	}
}

// Empty reports whether no kind carries a value.
func (d ContactDetails) Empty() bool {
	return d == ContactDetails{}
}

// Socials returns the populated social links keyed by platform.
func (d ContactDetails) Socials() map[string]string {
	out := make(map[string]string)
	for _, kind := range socialKinds {
		if v := d.Get(kind); v != "" {
			out[string(kind)] = v
		}
	}
	return out
}

func (d *ContactDetails) slot(kind ContactKind) *string {
	switch kind {
	case KindEmail:
		return &d.Email
	case KindPhone:
		return &d.Phone
	case KindFacebook:
		return &d.Facebook
	case KindInstagram:
		return &d.Instagram
	case KindTwitter:
		return &d.Twitter
	case KindLinkedIn:
		return &d.LinkedIn
	case KindYouTube:
		return &d.YouTube
	case KindWhatsApp:
		return &d.WhatsApp
	default:
		return nil
	}
}
