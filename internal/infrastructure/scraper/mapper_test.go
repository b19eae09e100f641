package scraper

import (
	"testing"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProduct(t *testing.T) {
	t.Run("decodes full payload", func(t *testing.T) {
		payload := `{
			"title": "Echo Dot (5th Gen)",
			"price": "₹4,499.00",
			"original_price": "₹5,499.00",
			"discount_percentage": 18,
			"rating": "4.4 out of 5 stars",
			"reviewCount": "12,345 ratings",
			"availability": "In stock",
			"images": ["https://m.media-amazon.com/a.jpg", ""],
			"features": ["Improved audio"],
			"description": "Smart speaker",
			"asin": "B09B8V1LZ3"
		}`

		record, err := DecodeProduct([]byte(payload))
		require.NoError(t, err)

		assert.Equal(t, "Echo Dot (5th Gen)", record.Title)
		assert.Equal(t, "₹4,499.00", record.Price)
		assert.Equal(t, "18", record.DiscountPercentage)
		assert.Equal(t, 4.4, record.Rating)
		assert.Equal(t, 12345, record.ReviewCount)
		assert.Equal(t, []string{"https://m.media-amazon.com/a.jpg"}, record.Images)
		assert.Equal(t, "B09B8V1LZ3", record.ASIN)
		assert.True(t, record.Usable())
	})

	t.Run("defaults absent fields", func(t *testing.T) {
		record, err := DecodeProduct([]byte(`{"title": "Lamp"}`))
		require.NoError(t, err)

		assert.Equal(t, domain.NotAvailable, record.Price)
		assert.Equal(t, domain.NotAvailable, record.Availability)
		assert.Equal(t, domain.NotAvailable, record.ASIN)
		assert.Equal(t, "", record.DiscountPercentage)
		assert.Zero(t, record.Rating)
		assert.Zero(t, record.ReviewCount)
		assert.Empty(t, record.Images)
		assert.NotNil(t, record.Features)
	})

	t.Run("unwraps data envelope", func(t *testing.T) {
		record, err := DecodeProduct([]byte(`{"data": {"title": "Kettle", "price": "$25"}}`))
		require.NoError(t, err)
		assert.Equal(t, "Kettle", record.Title)
		assert.Equal(t, "$25", record.Price)
	})

	t.Run("placeholder title is not usable", func(t *testing.T) {
		record, err := DecodeProduct([]byte(`{"title": "N/A"}`))
		require.NoError(t, err)
		assert.False(t, record.Usable())
	})

	t.Run("error payload is a classified failure", func(t *testing.T) {
		_, err := DecodeProduct([]byte(`{"error": "captcha page"}`))
		require.Error(t, err)
		assert.Equal(t, domain.KindExternalFailure, domain.KindOf(err))
		assert.Contains(t, err.Error(), "captcha page")
	})

	t.Run("invalid json is a plain error", func(t *testing.T) {
		_, err := DecodeProduct([]byte(`Traceback (most recent call last):`))
		require.Error(t, err)

		var acqErr *domain.AcquisitionError
		assert.NotErrorAs(t, err, &acqErr)
	})
}

func TestDecodeReviews(t *testing.T) {
	t.Run("decodes reviews and metadata", func(t *testing.T) {
		payload := `[
			{"Stars": "5.0", "Description": "Great", "Author": "A", "Helpful": 3},
			{"Stars": "1.0", "Description": "Broke", "Nested": {"x": 1}}
		]`

		reviews, err := DecodeReviews([]byte(payload))
		require.NoError(t, err)
		require.Len(t, reviews, 2)

		assert.Equal(t, "5.0", reviews[0].Stars)
		assert.Equal(t, "Great", reviews[0].Description)
		assert.Equal(t, map[string]string{"Author": "A", "Helpful": "3"}, reviews[0].Metadata)
		assert.Equal(t, "1.0", reviews[1].Stars)
		assert.Nil(t, reviews[1].Metadata)
	})

	t.Run("empty list", func(t *testing.T) {
		reviews, err := DecodeReviews([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, reviews)
	})

	t.Run("error object", func(t *testing.T) {
		_, err := DecodeReviews([]byte(`{"error": "Too many requests"}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrExternalFailure)
	})

	t.Run("object without error key is malformed", func(t *testing.T) {
		_, err := DecodeReviews([]byte(`{"reviews": []}`))
		require.Error(t, err)
	})
}
