package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/pricelens/backend/internal/domain"
)

// RemoteAcquirer delegates acquisition to a scraper service over HTTP.
// Responses are mapped onto the same exit/stdout/stderr shape a local
// scraper process produces so the orchestrator classifies both alike.
type RemoteAcquirer struct {
	client  *resty.Client
	baseURL string
}

type acquireRequest struct {
	Kind domain.AcquisitionKind `json:"kind"`
	URL  string                 `json:"url"`
}

// NewRemoteAcquirer creates a client for the scraper service at baseURL
func NewRemoteAcquirer(baseURL string) *RemoteAcquirer {
	client := resty.New()
	// per-attempt deadlines come from the caller's context
	client.SetTimeout(0)
	client.SetHeader("User-Agent", "PriceLens/1.0")

	return &RemoteAcquirer{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Acquire posts the acquisition request and waits for the response
func (a *RemoteAcquirer) Acquire(ctx context.Context, kind domain.AcquisitionKind, targetURL string) (*domain.AcquisitionOutput, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(acquireRequest{Kind: kind, URL: targetURL}).
		Post(a.baseURL + "/acquire")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "request %s acquisition", kind)
	}

	return mapResponse(resp.StatusCode(), resp.Body()), nil
}

func mapResponse(status int, body []byte) *domain.AcquisitionOutput {
	switch {
	case status >= 200 && status < 300:
		return &domain.AcquisitionOutput{ExitCode: 0, Stdout: body}
	case status == http.StatusTooManyRequests:
		return &domain.AcquisitionOutput{
			ExitCode: 1,
			Stderr:   []byte(fmt.Sprintf("HTTP 429 Too Many Requests: %s", body)),
		}
	default:
		return &domain.AcquisitionOutput{
			ExitCode: 1,
			Stderr:   []byte(fmt.Sprintf("HTTP %d %s: %s", status, http.StatusText(status), body)),
		}
	}
}
