// Package availability is the Availability Adapter (C5a, spec.md §4.5): it
// verifies domain registration status against the IANA RDAP bootstrap and
// per-TLD RDAP servers. Errors and timeouts always map to StatusUnknown,
// never StatusAvailable (§4.5, §7 LookupUnknown).
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Status is the outcome of a single RDAP lookup (§3 DomainResult.status).
type Status string

const (
	StatusAvailable  Status = "available"
	StatusRegistered Status = "registered"
	StatusUnknown    Status = "unknown"
)

// Result is one domain's availability check outcome (§4.5 "check(domain) →
// {status, registrar?, expiration?}").
type Result struct {
	Domain     string
	Status     Status
	Registrar  string
	Expiration string
	Error      string
}

const bootstrapURL = "https://data.iana.org/rdap/dns.json"

// Checker queries RDAP servers resolved from IANA's bootstrap file, cached
// for the process lifetime (grounded on
// original_source/grove_domain_search/checker.py fetch_rdap_bootstrap).
type Checker struct {
	httpClient  *http.Client
	parallelism int
	limiter     *rate.Limiter

	mu        sync.Mutex
	bootstrap map[string]string // tld -> rdap base URL
	fetched   bool
}

// New constructs a Checker. parallelism bounds concurrent in-flight lookups
// (§4.2 step 7 "parallelism of 5"); slotInterval paces dispatch via a
// token-bucket limiter (§4.2 step 7 "500 ms" slot, §9).
func New(parallelism int, slotInterval time.Duration) *Checker {
	if parallelism <= 0 {
		parallelism = 5
	}
	if slotInterval <= 0 {
		slotInterval = 500 * time.Millisecond
	}
	return &Checker{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		parallelism: parallelism,
		limiter:     rate.NewLimiter(rate.Every(slotInterval), 1),
	}
}

// CheckBulk checks every domain, bounded to c.parallelism in-flight lookups
// and paced by the slot-interval limiter (§4.2 step 7, §5). Results preserve
// input order.
func (c *Checker) CheckBulk(ctx context.Context, domains []string) []Result {
	results := make([]Result, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for i, d := range domains {
		i, d := i, d
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				results[i] = Result{Domain: d, Status: StatusUnknown, Error: err.Error()}
				return nil
			}
			results[i] = c.Check(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Check performs a single RDAP lookup. Any failure to resolve a server, any
// transport error, or any non-404/2xx HTTP status yields StatusUnknown
// rather than a guess (§4.5).
func (c *Checker) Check(ctx context.Context, domain string) Result {
	domain = strings.ToLower(strings.TrimSpace(domain))
	tld := tldOf(domain)

	server, err := c.rdapServer(ctx, tld)
	if err != nil || server == "" {
		return Result{Domain: domain, Status: StatusUnknown, Error: fmt.Sprintf("no RDAP server for .%s", tld)}
	}

	url := fmt.Sprintf("%s/domain/%s", server, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Domain: domain, Status: StatusUnknown, Error: err.Error()}
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")
	req.Header.Set("User-Agent", "domainsearch/1.0 (bulk availability check)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Domain: domain, Status: StatusUnknown, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{Domain: domain, Status: StatusAvailable}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Domain: domain, Status: StatusUnknown, Error: fmt.Sprintf("rdap http %d", resp.StatusCode)}
	}

	var data rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Result{Domain: domain, Status: StatusUnknown, Error: err.Error()}
	}
	result := Result{Domain: domain, Status: StatusRegistered}
	result.Registrar = data.registrarName()
	result.Expiration = data.eventDate("expiration")
	return result
}

// rdapServer returns the RDAP base URL for tld, fetching and caching IANA's
// bootstrap file on first use.
func (c *Checker) rdapServer(ctx context.Context, tld string) (string, error) {
	c.mu.Lock()
	if c.fetched {
		server := c.bootstrap[tld]
		c.mu.Unlock()
		return server, nil
	}
	c.mu.Unlock()

	bootstrap, err := c.fetchBootstrap(ctx)
	if err != nil {
		return "", err
	}
	return bootstrap[tld], nil
}

func (c *Checker) fetchBootstrap(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetched {
		return c.bootstrap, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bootstrapURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.bootstrap = map[string]string{}
		c.fetched = true
		return c.bootstrap, nil
	}
	defer resp.Body.Close()

	var data struct {
		Services [][]json.RawMessage `json:"services"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.bootstrap = map[string]string{}
		c.fetched = true
		return c.bootstrap, nil
	}

	tldMap := map[string]string{}
	for _, entry := range data.Services {
		if len(entry) < 2 {
			continue
		}
		var tlds []string
		var servers []string
		if err := json.Unmarshal(entry[0], &tlds); err != nil {
			continue
		}
		if err := json.Unmarshal(entry[1], &servers); err != nil || len(servers) == 0 {
			continue
		}
		server := strings.TrimSuffix(servers[0], "/")
		for _, tld := range tlds {
			tldMap[strings.ToLower(tld)] = server
		}
	}
	c.bootstrap = tldMap
	c.fetched = true
	return c.bootstrap, nil
}

func tldOf(domain string) string {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return domain
	}
	return domain[idx+1:]
}

// rdapResponse is the subset of an RDAP domain object this adapter reads.
type rdapResponse struct {
	Entities []struct {
		Roles      []string `json:"roles"`
		Handle     string   `json:"handle"`
		VCardArray []json.RawMessage `json:"vcardArray"`
	} `json:"entities"`
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
}

func (r rdapResponse) registrarName() string {
	for _, e := range r.Entities {
		if !contains(e.Roles, "registrar") {
			continue
		}
		if name := vcardFN(e.VCardArray); name != "" {
			return name
		}
		return e.Handle
	}
	return ""
}

// vcardFN extracts the "fn" (formatted name) property from a jCard
// structure: ["vcard", [[name, params, type, value], ...]].
func vcardFN(vcard []json.RawMessage) string {
	if len(vcard) < 2 {
		return ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(vcard[1], &props); err != nil {
		return ""
	}
	for _, p := range props {
		if len(p) < 4 {
			continue
		}
		var field string
		if err := json.Unmarshal(p[0], &field); err != nil || field != "fn" {
			continue
		}
		var value string
		if err := json.Unmarshal(p[3], &value); err == nil {
			return value
		}
	}
	return ""
}

func (r rdapResponse) eventDate(action string) string {
	for _, e := range r.Events {
		if e.Action == action {
			if len(e.Date) > 10 {
				return e.Date[:10]
			}
			return e.Date
		}
	}
	return ""
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
