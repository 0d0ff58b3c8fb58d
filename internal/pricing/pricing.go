// Package pricing is the Pricing Adapter (C5b, spec.md §4.5): a single bulk
// HTTP call to a registrar pricing endpoint, treated as an opaque contract
// per §1 scope. Missing entries are tolerated and never invalidate an
// availability result (§4.5, §7 LookupUnknown).
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Price is one domain's registrar pricing (§3 DomainResult.price_cents,
// evaluation_data's "registrar, expiration, pricing category, renewal
// price").
type Price struct {
	PriceCents   int
	RenewalCents int
	Category     string
}

// Cutoffs holds the cents-denominated category boundaries (§9 open
// question: cutoffs are cents, not dollars; re-denomination is a behavior
// change).
type Cutoffs struct {
	BundledMaxCents     int
	RecommendedMaxCents int
}

// Category classifies priceCents into bundled/recommended/premium, or
// unknown when priceCents is nil (§4.1 results()).
func (c Cutoffs) Category(priceCents *int) string {
	if priceCents == nil {
		return "unknown"
	}
	switch {
	case *priceCents <= c.BundledMaxCents:
		return "bundled"
	case *priceCents <= c.RecommendedMaxCents:
		return "recommended"
	default:
		return "premium"
	}
}

// Client calls a registrar's bulk-pricing HTTP endpoint (contract only,
// §1). A zero-value Client with an empty URL makes Bulk a no-op returning
// an empty map, so pricing degrades gracefully when unconfigured.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	cutoffs    Cutoffs
}

// New constructs a pricing Client. An empty url disables pricing entirely.
func New(url, apiKey string, cutoffs Cutoffs) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cutoffs:    cutoffs,
	}
}

// Bulk fetches pricing for every domain in one request (§4.2 step 8 "For
// candidates that resolved to available, call C5-pricing as a single bulk
// request"). Any failure — network, non-2xx, malformed body — returns an
// empty map; no error is reported: pricing is optional and never invalidates
// availability (§4.5, §7 EmailUnavailable-style swallow semantics apply
// here too, grounded on
// original_source/grove_domain_tool/orchestrator.py's
// `try: pricing = await get_batch_pricing(...) except Exception: pass`).
func (c *Client) Bulk(ctx context.Context, domains []string) map[string]Price {
	if c.url == "" || len(domains) == 0 {
		return map[string]Price{}
	}

	body, err := json.Marshal(map[string]any{"domains": domains})
	if err != nil {
		return map[string]Price{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return map[string]Price{}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return map[string]Price{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return map[string]Price{}
	}

	var data struct {
		Prices map[string]struct {
			PriceCents   int `json:"price_cents"`
			RenewalCents int `json:"renewal_cents"`
		} `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return map[string]Price{}
	}

	out := make(map[string]Price, len(data.Prices))
	for domain, p := range data.Prices {
		priceCents := p.PriceCents
		out[domain] = Price{
			PriceCents:   p.PriceCents,
			RenewalCents: p.RenewalCents,
			Category:     c.cutoffs.Category(&priceCents),
		}
	}
	return out
}
