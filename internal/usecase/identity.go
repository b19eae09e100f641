package usecase

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Compiled patterns for product URL normalization
var (
	// Matches the 10-character catalog code (ASIN) in product, legacy product
	// and review page paths
	catalogCodePattern = regexp.MustCompile(`(?i)/(?:dp|gp/product|gp/aw/d|product-reviews)/([a-z0-9]{10})(?:[/?#]|$)`)

	duplicateSlashPattern = regexp.MustCompile(`/{2,}`)
)

// reviewsListingSuffix selects the most recent reviews, first page
const reviewsListingSuffix = "/ref=cm_cr_dp_d_show_all_btm?pageNumber=1&sortBy=recent"

// ValidateProductURL checks that raw is an absolute http(s) URL on a
// recognized marketplace host. hosts are matched as substrings.
func ValidateProductURL(raw string, hosts []string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.NewAcquisitionError(domain.KindInvalidInput, "Valid URL is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.NewAcquisitionError(domain.KindInvalidInput, "Invalid URL format")
	}
	// in-page anchors never reach the scrapers
	parsed.Fragment = ""
	parsed.RawFragment = ""

	hostname := strings.ToLower(parsed.Hostname())
	for _, host := range hosts {
		if host != "" && strings.Contains(hostname, strings.ToLower(host)) {
			return parsed, nil
		}
	}
	return nil, domain.NewAcquisitionError(domain.KindInvalidInput, "Only %s URLs are supported", marketplaceLabel(hosts))
}

// NormalizeIdentity derives the cache identity for a product URL: the
// catalog code when the path carries one, else the cleaned path. Query
// strings, fragments, scheme and host never influence the identity.
func NormalizeIdentity(raw string) domain.ProductIdentity {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.ProductIdentity(strings.TrimSpace(raw))
	}

	path := parsed.EscapedPath()
	if match := catalogCodePattern.FindStringSubmatch(path); match != nil {
		return domain.ProductIdentity(strings.ToUpper(match[1]))
	}

	path = duplicateSlashPattern.ReplaceAllString(path, "/")
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return domain.ProductIdentity(path)
}

// ReviewsURL derives the review listing URL for a product page URL
func ReviewsURL(productURL string) string {
	base := productURL
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.Replace(base, "/dp/", "/product-reviews/", 1)
	return strings.TrimRight(base, "/") + reviewsListingSuffix
}

func marketplaceLabel(hosts []string) string {
	if len(hosts) == 0 || hosts[0] == "" {
		return "marketplace"
	}
	first := hosts[0]
	return strings.ToUpper(first[:1]) + first[1:]
}
