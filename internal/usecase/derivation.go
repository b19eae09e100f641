package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

const (
	// FallbackPrice is used when the scraped price has no positive number
	FallbackPrice = 1000.0

	// DefaultStarRating is assumed for reviews whose star field cannot be read
	DefaultStarRating = 3.0

	// PriceHistoryDays is the number of daily points in a synthesized history
	PriceHistoryDays = 30

	historyDateLayout = "2006-01-02"
)

// DefaultSentiment is reported when there are no reviews to score
var DefaultSentiment = domain.Sentiment{Positive: 60, Neutral: 25, Negative: 15}

var (
	priceNoiseRegex = regexp.MustCompile(`[₹$€£¥,\s]`)
	numberRegex     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParsePrice extracts the first numeric token from a scraped price string.
// Anything without a positive number yields FallbackPrice.
func ParsePrice(price string) float64 {
	if price == "" || price == domain.NotAvailable {
		return FallbackPrice
	}
	cleaned := priceNoiseRegex.ReplaceAllString(price, "")
	token := numberRegex.FindString(cleaned)
	if token == "" {
		return FallbackPrice
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil || value <= 0 {
		return FallbackPrice
	}
	return value
}

// SynthesizePriceHistory builds PriceHistoryDays daily points ending today.
// The last point is the current price; earlier points follow a fixed wave
// around it so the same input always yields the same history.
func SynthesizePriceHistory(current float64, today time.Time) []domain.PriceHistoryPoint {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	points := make([]domain.PriceHistoryPoint, PriceHistoryDays)

	for i := 0; i < PriceHistoryDays; i++ {
		offset := PriceHistoryDays - 1 - i
		price := current
		if offset > 0 {
			x := float64(offset)
			variation := 0.08*math.Sin(x*0.45) + 0.04*math.Cos(x*1.3) + 0.002*x
			price = current * (1 + variation)
		}
		points[i] = domain.PriceHistoryPoint{
			Date:  day.AddDate(0, 0, -offset).Format(historyDateLayout),
			Price: roundTo(price, 2),
		}
	}
	return points
}

// ComparePrices summarizes history against the displayed current price.
// history must not be empty.
func ComparePrices(current string, history []domain.PriceHistoryPoint) domain.PriceComparison {
	lowest, highest, sum := history[0].Price, history[0].Price, 0.0
	for _, p := range history {
		lowest = math.Min(lowest, p.Price)
		highest = math.Max(highest, p.Price)
		sum += p.Price
	}

	trend := domain.TrendDecreasing
	if history[len(history)-1].Price > history[0].Price {
		trend = domain.TrendIncreasing
	}

	return domain.PriceComparison{
		Current: current,
		Lowest:  lowest,
		Highest: highest,
		Average: sum / float64(len(history)),
		Trend:   trend,
	}
}

// ParseStarRating reads the numeric rating from a free-text star field
// such as "4.0 out of 5 stars".
func ParseStarRating(stars string) float64 {
	token := numberRegex.FindString(stars)
	if token == "" {
		return DefaultStarRating
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return DefaultStarRating
	}
	return value
}

// ScoreSentiment buckets ratings into positive (>= 4), negative (<= 2) and
// neutral. Each percentage is rounded on its own.
func ScoreSentiment(ratings []float64) domain.Sentiment {
	if len(ratings) == 0 {
		return DefaultSentiment
	}

	var positive, negative int
	for _, r := range ratings {
		switch {
		case r >= 4:
			positive++
		case r <= 2:
			negative++
		}
	}
	neutral := len(ratings) - positive - negative
	total := float64(len(ratings))

	return domain.Sentiment{
		Positive: int(math.Round(float64(positive) / total * 100)),
		Neutral:  int(math.Round(float64(neutral) / total * 100)),
		Negative: int(math.Round(float64(negative) / total * 100)),
	}
}

// ReviewRatings parses the star field of every review
func ReviewRatings(reviews []domain.RawReviewRecord) []float64 {
	ratings := make([]float64, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, ParseStarRating(r.Stars))
	}
	return ratings
}

// GenerateInsights returns the key insight, pros and cons lists. They are
// never empty.
func GenerateInsights(reviewCount int) (insights, pros, cons []string) {
	insights = []string{
		"Product quality is generally well-received",
		"Shipping and delivery times meet expectations",
		"Value for money is considered reasonable",
	}
	if reviewCount > 0 {
		insights = append(insights, fmt.Sprintf("Based on %d customer reviews analyzed", reviewCount))
	}
	pros = []string{
		"High customer satisfaction rating",
		"Reliable seller with good track record",
		"Competitive pricing",
	}
	cons = []string{
		"Limited availability in some regions",
		"Some customers report packaging issues",
	}
	return insights, pros, cons
}

// FormatDiscount renders a scraped discount as "N%", or nil when absent
func FormatDiscount(discount string) *string {
	d := strings.TrimSpace(discount)
	d = strings.TrimSpace(strings.TrimLeft(strings.TrimRight(d, "%"), "-"))
	if d == "" || d == domain.NotAvailable {
		return nil
	}
	formatted := d + "%"
	return &formatted
}

// DeriveInput is everything the derivation needs from a settled fetch
type DeriveInput struct {
	ProductURL  string
	Product     *domain.RawProductRecord
	Reviews     []domain.RawReviewRecord
	ReviewLimit int
	Warnings    []string
	Now         time.Time
}

// DeriveAnalysis assembles the AnalysisResult from a product record and its
// reviews. It has no side effects.
func DeriveAnalysis(in DeriveInput) *domain.AnalysisResult {
	product := in.Product
	history := SynthesizePriceHistory(ParsePrice(product.Price), in.Now)
	insights, pros, cons := GenerateInsights(len(in.Reviews))

	reviews := in.Reviews
	if in.ReviewLimit > 0 && len(reviews) > in.ReviewLimit {
		reviews = reviews[:in.ReviewLimit]
	}
	reviews = append([]domain.RawReviewRecord{}, reviews...)

	return &domain.AnalysisResult{
		Title:      product.Title,
		ProductURL: in.ProductURL,
		ASIN:       product.ASIN,
		Price: domain.PriceInfo{
			Current:    product.Price,
			Original:   product.OriginalPrice,
			Discount:   FormatDiscount(product.DiscountPercentage),
			Comparison: ComparePrices(product.Price, history),
			History:    history,
		},
		Rating: domain.RatingInfo{
			Average: product.Rating,
			Count:   product.ReviewCount,
		},
		Availability: product.Availability,
		Images:       append([]string{}, product.Images...),
		Features:     append([]string{}, product.Features...),
		Description:  product.Description,
		Reviews:      reviews,
		Analysis: domain.ReviewAnalysis{
			Sentiment:   ScoreSentiment(ReviewRatings(in.Reviews)),
			KeyInsights: insights,
			Pros:        pros,
			Cons:        cons,
			ReviewCount: len(in.Reviews),
		},
		Warnings:    in.Warnings,
		LastUpdated: in.Now.UTC(),
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
