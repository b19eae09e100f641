package domain

import "time"

// PriceHistoryPoint is one dated price observation
type PriceHistoryPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PriceTrend is the direction of the price history
type PriceTrend string

const (
	TrendIncreasing PriceTrend = "increasing"
	TrendDecreasing PriceTrend = "decreasing"
)

// PriceComparison summarizes the price history against the current price
type PriceComparison struct {
	Current string     `json:"current"`
	Lowest  float64    `json:"lowest"`
	Highest float64    `json:"highest"`
	Average float64    `json:"average"`
	Trend   PriceTrend `json:"trend"`
}

// PriceInfo groups raw and derived price data
type PriceInfo struct {
	Current    string              `json:"current"`
	Original   string              `json:"original"`
	Discount   *string             `json:"discount"`
	Comparison PriceComparison     `json:"comparison"`
	History    []PriceHistoryPoint `json:"history"`
}

// RatingInfo is the aggregate star rating reported by the marketplace
type RatingInfo struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Sentiment holds rounded review bucket percentages.
// Values are rounded independently and may not sum to 100.
type Sentiment struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// ReviewAnalysis is the derived review summary
type ReviewAnalysis struct {
	Sentiment   Sentiment `json:"sentiment"`
	KeyInsights []string  `json:"keyInsights"`
	Pros        []string  `json:"pros"`
	Cons        []string  `json:"cons"`
	ReviewCount int       `json:"reviewCount"`
}

// AnalysisResult is the cached unit and the response payload.
// Cached and LastUpdated are annotations recomputed on every response.
type AnalysisResult struct {
	Title            string            `json:"title"`
	ProductURL       string            `json:"productUrl"`
	ASIN             string            `json:"asin"`
	Price            PriceInfo         `json:"price"`
	Rating           RatingInfo        `json:"rating"`
	Availability     string            `json:"availability"`
	Images           []string          `json:"images"`
	Features         []string          `json:"features"`
	Description      string            `json:"description"`
	Reviews          []RawReviewRecord `json:"reviews"`
	Analysis         ReviewAnalysis    `json:"analysis"`
	Warnings         []string          `json:"warnings,omitempty"`
	ProcessingTimeMS int64             `json:"processingTime"`
	Cached           bool              `json:"cached"`
	LastUpdated      time.Time         `json:"lastUpdated"`
}

// Annotate returns a shallow copy with the response annotations set.
// Slices are shared with the receiver, which is never mutated.
func (r *AnalysisResult) Annotate(cached bool, now time.Time) *AnalysisResult {
	annotated := *r
	annotated.Cached = cached
	annotated.LastUpdated = now.UTC()
	return &annotated
}

// CacheStats reports cache membership and effectiveness
type CacheStats struct {
	Size       int      `json:"size"`
	Identities []string `json:"identities"`
	Hits       int64    `json:"hits"`
	Misses     int64    `json:"misses"`
}
