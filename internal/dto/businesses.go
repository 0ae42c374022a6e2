package dto

// ListFilter contains query parameters for the persisted leads listing.
type ListFilter struct {
	Q             string
	Category      string
	AreaName      string
	MinRating     *float64
	MinScore      *int
	HasEmail      bool
	WebsiteStatus string
	Sort          string
	Page          int
	PerPage       int
}
