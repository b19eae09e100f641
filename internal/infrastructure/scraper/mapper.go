package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
)

var firstNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

// looseString accepts a JSON string, number, bool or null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("expected scalar, got %s", data[:1])
	}
	*s = looseString(data)
	return nil
}

// productPayload mirrors the product scraper's JSON output
type productPayload struct {
	Title              looseString   `json:"title"`
	Price              looseString   `json:"price"`
	OriginalPrice      looseString   `json:"original_price"`
	DiscountPercentage looseString   `json:"discount_percentage"`
	Rating             looseString   `json:"rating"`
	ReviewCount        looseString   `json:"reviewCount"`
	Availability       looseString   `json:"availability"`
	Images             []looseString `json:"images"`
	Features           []looseString `json:"features"`
	Description        looseString   `json:"description"`
	ASIN               looseString   `json:"asin"`
}

type errorPayload struct {
	Error *string `json:"error"`
}

// DecodeProduct parses the product scraper output into a RawProductRecord.
// Absent text fields default to "N/A", numbers to 0 and lists to empty.
func DecodeProduct(stdout []byte) (*domain.RawProductRecord, error) {
	stdout = bytes.TrimSpace(stdout)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode product payload")
	}
	if msg, ok := payloadError(stdout); ok {
		return nil, domain.NewAcquisitionError(domain.KindExternalFailure, "product scraper reported: %s", msg)
	}
	if data, ok := envelope["data"]; ok && len(bytes.TrimSpace(data)) > 0 && data[0] == '{' {
		stdout = data
	}

	var payload productPayload
	if err := json.Unmarshal(stdout, &payload); err != nil {
		return nil, errors.Wrap(err, "decode product fields")
	}

	return &domain.RawProductRecord{
		Title:              textOrNA(payload.Title),
		Price:              textOrNA(payload.Price),
		OriginalPrice:      textOrNA(payload.OriginalPrice),
		DiscountPercentage: strings.TrimSpace(string(payload.DiscountPercentage)),
		Rating:             firstFloat(string(payload.Rating)),
		ReviewCount:        int(firstFloat(strings.ReplaceAll(string(payload.ReviewCount), ",", ""))),
		Availability:       textOrNA(payload.Availability),
		Images:             nonEmpty(payload.Images),
		Features:           nonEmpty(payload.Features),
		Description:        textOrNA(payload.Description),
		ASIN:               textOrNA(payload.ASIN),
	}, nil
}

// DecodeReviews parses the review scraper output. The scraper emits either a
// list of review objects or an {"error": "..."} object.
func DecodeReviews(stdout []byte) ([]domain.RawReviewRecord, error) {
	stdout = bytes.TrimSpace(stdout)
	if msg, ok := payloadError(stdout); ok {
		return nil, domain.NewAcquisitionError(domain.KindExternalFailure, "review scraper reported: %s", msg)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return nil, errors.Wrap(err, "decode reviews payload")
	}

	reviews := make([]domain.RawReviewRecord, 0, len(raw))
	for _, fields := range raw {
		review := domain.RawReviewRecord{}
		for key, value := range fields {
			var text looseString
			if err := json.Unmarshal(value, &text); err != nil {
				// nested objects are not review metadata
				continue
			}
			switch key {
			case "Stars":
				review.Stars = string(text)
			case "Description":
				review.Description = string(text)
			default:
				if review.Metadata == nil {
					review.Metadata = make(map[string]string)
				}
				review.Metadata[key] = string(text)
			}
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

func payloadError(stdout []byte) (string, bool) {
	if len(stdout) == 0 || stdout[0] != '{' {
		return "", false
	}
	var payload errorPayload
	if err := json.Unmarshal(stdout, &payload); err != nil || payload.Error == nil {
		return "", false
	}
	return *payload.Error, true
}

func textOrNA(s looseString) string {
	text := strings.TrimSpace(string(s))
	if text == "" {
		return domain.NotAvailable
	}
	return text
}

func nonEmpty(values []looseString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if text := strings.TrimSpace(string(v)); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func firstFloat(s string) float64 {
	match := firstNumberRegex.FindString(s)
	if match == "" {
		return 0
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return f
}

// describeOutput renders a short diagnostic for logs
func describeOutput(out *domain.AcquisitionOutput) string {
	if out == nil {
		return "<no output>"
	}
	stderr := strings.TrimSpace(string(out.Stderr))
	if len(stderr) > 200 {
		stderr = stderr[:200] + "..."
	}
	return fmt.Sprintf("pid=%d exit=%d stderr=%q", out.PID, out.ExitCode, stderr)
}
