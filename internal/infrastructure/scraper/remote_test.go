package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteAcquirer_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("maps success to stdout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/acquire", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var req acquireRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, domain.AcquireReviews, req.Kind)
			assert.Equal(t, "https://www.amazon.com/product-reviews/B000000001", req.URL)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"Stars":"4.0"}]`))
		}))
		defer server.Close()

		acquirer := NewRemoteAcquirer(server.URL + "/")
		out, err := acquirer.Acquire(ctx, domain.AcquireReviews, "https://www.amazon.com/product-reviews/B000000001")
		require.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.JSONEq(t, `[{"Stars":"4.0"}]`, string(out.Stdout))
	})

	t.Run("maps 429 to rate-limit diagnostics", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		out, err := NewRemoteAcquirer(server.URL).Acquire(ctx, domain.AcquireProduct, "https://example.com")
		require.NoError(t, err)
		assert.NotEqual(t, 0, out.ExitCode)
		assert.Contains(t, string(out.Stderr), "429")
	})

	t.Run("maps server errors to failure exit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}))
		defer server.Close()

		out, err := NewRemoteAcquirer(server.URL).Acquire(ctx, domain.AcquireProduct, "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, out.ExitCode)
		assert.Contains(t, string(out.Stderr), "502")
		assert.Contains(t, string(out.Stderr), "upstream down")
	})

	t.Run("honors context deadline", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		attemptCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := NewRemoteAcquirer(server.URL).Acquire(attemptCtx, domain.AcquireProduct, "https://example.com")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
