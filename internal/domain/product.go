package domain

// ProductIdentity is the normalized cache key for a product URL.
// It is the embedded catalog code when present, else the URL path.
type ProductIdentity string

func (id ProductIdentity) String() string {
	return string(id)
}

// AcquisitionKind selects which external acquisition to run
type AcquisitionKind string

const (
	AcquireProduct AcquisitionKind = "product"
	AcquireReviews AcquisitionKind = "reviews"
)

// AcquisitionOutput is the raw outcome of one external acquisition call
type AcquisitionOutput struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	PID      int
}

// RawProductRecord is the product data returned by the product acquisition.
type RawProductRecord struct {
	Title              string   `json:"title"`
	Price              string   `json:"price"`
	OriginalPrice      string   `json:"original_price"`
	DiscountPercentage string   `json:"discount_percentage"`
	Rating             float64  `json:"rating"`
	ReviewCount        int      `json:"reviewCount"`
	Availability       string   `json:"availability"`
	Images             []string `json:"images"`
	Features           []string `json:"features"`
	Description        string   `json:"description"`
	ASIN               string   `json:"asin"`
}

// Usable reports whether the record carries a real product title.
// Scrapers emit an empty or "N/A" title when the page was blocked.
func (p *RawProductRecord) Usable() bool {
	return p != nil && p.Title != "" && p.Title != NotAvailable
}

// RawReviewRecord is a single scraped review
type RawReviewRecord struct {
	Stars       string            `json:"Stars"`
	Description string            `json:"Description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NotAvailable is the placeholder scrapers use for missing text fields
const NotAvailable = "N/A"
