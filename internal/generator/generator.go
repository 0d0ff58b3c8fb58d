// Package generator is the Generator Adapter (C3, spec.md §4.3): it asks a
// provider for candidate domain strings and parses the reply into a
// deduplicated, validated list.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/groveplace/domainsearch/internal/provider"
)

const systemPrompt = `You are a creative domain-name strategist helping a business find an available, memorable domain. Suggest short, brandable, easy-to-spell candidates. Avoid trademarked names.`

// Candidate is a generator-emitted domain string not yet evaluated or
// checked (GLOSSARY "Candidate").
type Candidate struct {
	Domain   string
	TLD      string
	BatchNum int
}

// PreviousResults is the bounded "learning between batches" context fed to
// the generator from batch 2 onward (§4.2 step 2, §9 "Learning between
// batches": last 50 checked, last 20 available, top-3 taken TLDs).
type PreviousResults struct {
	CheckedDomains   []string
	AvailableDomains []string
	TargetCount      int
}

// TriedSummary groups checked domains by TLD, most frequent first, as a
// short string (grounded on
// original_source/grove_domain_tool/agents/driver.py PreviousResults.get_tried_summary).
func (p PreviousResults) TriedSummary() string {
	if len(p.CheckedDomains) == 0 {
		return "Nothing checked yet"
	}
	counts := map[string]int{}
	for _, d := range p.CheckedDomains {
		counts[tldOf(d)]++
	}
	type tldCount struct {
		tld   string
		count int
	}
	var tcs []tldCount
	for tld, c := range counts {
		tcs = append(tcs, tldCount{tld, c})
	}
	sort.Slice(tcs, func(i, j int) bool { return tcs[i].count > tcs[j].count })
	if len(tcs) > 5 {
		tcs = tcs[:5]
	}
	parts := make([]string, len(tcs))
	for i, tc := range tcs {
		parts[i] = fmt.Sprintf(".%s: %d", tc.tld, tc.count)
	}
	return strings.Join(parts, ", ")
}

// AvailableSummary lists the first 10 available domains found so far.
func (p PreviousResults) AvailableSummary() string {
	if len(p.AvailableDomains) == 0 {
		return "None found yet"
	}
	n := len(p.AvailableDomains)
	if n > 10 {
		n = 10
	}
	return strings.Join(p.AvailableDomains[:n], ", ")
}

// TakenPatternSummary names the top three most-frequent TLDs among
// CheckedDomains that are not listed in AvailableDomains. PreviousResults
// carries no per-domain status, so domains whose lookup was unknown or that
// were discarded before the check are counted as taken too, as are available
// domains older than the AvailableDomains window.
func (p PreviousResults) TakenPatternSummary() string {
	available := make(map[string]bool, len(p.AvailableDomains))
	for _, d := range p.AvailableDomains {
		available[strings.ToLower(d)] = true
	}
	counts := map[string]int{}
	for _, d := range p.CheckedDomains {
		d = strings.ToLower(d)
		if available[d] {
			continue
		}
		counts[tldOf(d)]++
	}
	if len(counts) == 0 {
		return "No clear patterns yet"
	}
	type tldCount struct {
		tld   string
		count int
	}
	var tcs []tldCount
	for tld, c := range counts {
		tcs = append(tcs, tldCount{tld, c})
	}
	sort.Slice(tcs, func(i, j int) bool {
		if tcs[i].count != tcs[j].count {
			return tcs[i].count > tcs[j].count
		}
		return tcs[i].tld < tcs[j].tld
	})
	if len(tcs) > 3 {
		tcs = tcs[:3]
	}
	parts := make([]string, len(tcs))
	for i, tc := range tcs {
		parts[i] = fmt.Sprintf(".%s", tc.tld)
	}
	return "most-registered TLDs so far: " + strings.Join(parts, ", ")
}

func tldOf(domain string) string {
	parts := strings.Split(domain, ".")
	return parts[len(parts)-1]
}

// Request bundles the business inputs for one generation call (§4.2 step 3).
type Request struct {
	BusinessName   string
	TLDPreferences []string
	Vibe           string
	BatchNum       int
	MaxBatches     int
	Count          int
	DomainIdea     string
	Keywords       string
	Previous       *PreviousResults // nil before batch 2
}

// Generator is the Generator Adapter.
type Generator struct {
	provider provider.Provider
	model    string
}

// New constructs a Generator backed by p, optionally overriding its model.
func New(p provider.Provider, model string) *Generator {
	return &Generator{provider: p, model: model}
}

// Generate returns up to req.Count unique, syntactically valid domain
// candidates (§4.3). Errors are never returned for provider degradation:
// a failed or malformed reply yields a zero-candidate result so the
// pipeline can record a zero-work batch (§7 ProviderDegraded).
func (g *Generator) Generate(ctx context.Context, req Request) ([]Candidate, provider.Usage) {
	prompt := buildPrompt(req)
	opts := provider.GenerateOptions{
		System:      systemPrompt,
		Model:       g.model,
		MaxTokens:   4096,
		Temperature: 0.8,
	}

	var domains []string
	var usage provider.Usage

	if g.provider.SupportsTools() {
		opts.ToolChoice = provider.ToolChoice(provider.DriverTool.Name)
		resp, err := g.provider.GenerateWithTools(ctx, prompt, []provider.ToolDefinition{provider.DriverTool}, opts)
		if err == nil {
			usage = resp.Usage
			if resp.HasToolCall() {
				domains = parseToolCall(resp.ToolCalls)
			} else {
				domains = parseContent(resp.Content)
			}
		} else {
			domains, usage = g.generateFallback(ctx, prompt, opts)
		}
	} else {
		domains, usage = g.generateFallback(ctx, prompt, opts)
	}

	candidates := toCandidates(domains, req.BatchNum)
	if req.Previous != nil {
		candidates = excludeChecked(candidates, req.Previous.CheckedDomains)
	}
	if len(candidates) > req.Count {
		candidates = candidates[:req.Count]
	}
	return candidates, usage
}

func (g *Generator) generateFallback(ctx context.Context, prompt string, opts provider.GenerateOptions) ([]string, provider.Usage) {
	opts.ToolChoice = ""
	resp, err := g.provider.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, provider.Usage{}
	}
	return parseContent(resp.Content), resp.Usage
}

func parseToolCall(calls []provider.ToolCall) []string {
	var domains []string
	for _, tc := range calls {
		if tc.ToolName != provider.DriverTool.Name {
			continue
		}
		raw, ok := tc.Arguments["domains"]
		if !ok {
			continue
		}
		domains = append(domains, toStringSlice(raw)...)
	}
	return dedupeValid(domains)
}

func toStringSlice(raw any) []string {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
var domainLikePattern = regexp.MustCompile(`\b[a-zA-Z0-9][-a-zA-Z0-9]*\.[a-zA-Z]{2,}\b`)

// parseContent implements the fallback path: extract the first balanced-ish
// JSON object {"domains": [...]}; if that fails, fall back to a
// domain-shaped regex scan (§4.3 "Fallback path").
func parseContent(content string) []string {
	if m := jsonObjectPattern.FindString(content); m != "" {
		var data struct {
			Domains []string `json:"domains"`
		}
		if err := json.Unmarshal([]byte(m), &data); err == nil && len(data.Domains) > 0 {
			return dedupeValid(data.Domains)
		}
	}
	matches := domainLikePattern.FindAllString(content, -1)
	return dedupeValid(matches)
}

var leadingLabelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// isValidDomain implements §4.3's validation rule verbatim.
func isValidDomain(domain string) bool {
	if len(domain) < 4 {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	lower := strings.ToLower(domain)
	idx := strings.LastIndex(lower, ".")
	tld := lower[idx+1:]
	name := lower[:idx]

	if len(tld) < 2 || !isAlpha(tld) {
		return false
	}
	if len(name) < 1 || len(name) > 63 {
		return false
	}
	return leadingLabelPattern.MatchString(name)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func dedupeValid(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	var out []string
	for _, d := range domains {
		lower := strings.ToLower(strings.TrimSpace(d))
		if !isValidDomain(lower) {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

func toCandidates(domains []string, batchNum int) []Candidate {
	out := make([]Candidate, len(domains))
	for i, d := range domains {
		out[i] = Candidate{Domain: d, TLD: tldOf(d), BatchNum: batchNum}
	}
	return out
}

func excludeChecked(candidates []Candidate, checked []string) []Candidate {
	checkedSet := make(map[string]bool, len(checked))
	for _, d := range checked {
		checkedSet[strings.ToLower(d)] = true
	}
	out := candidates[:0]
	for _, c := range candidates {
		if !checkedSet[strings.ToLower(c.Domain)] {
			out = append(out, c)
		}
	}
	return out
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business name: %s\n", req.BusinessName)
	fmt.Fprintf(&b, "Preferred TLDs: %s\n", strings.Join(req.TLDPreferences, ", "))
	fmt.Fprintf(&b, "Vibe: %s\n", req.Vibe)
	if req.DomainIdea != "" {
		fmt.Fprintf(&b, "Seed idea: %s\n", req.DomainIdea)
	}
	if req.Keywords != "" {
		fmt.Fprintf(&b, "Keywords: %s\n", req.Keywords)
	}
	fmt.Fprintf(&b, "Batch %d of %d. Suggest %d new candidates.\n", req.BatchNum, req.MaxBatches, req.Count)
	if req.Previous != nil {
		fmt.Fprintf(&b, "\nPrevious attempts: %s\n", req.Previous.TriedSummary())
		fmt.Fprintf(&b, "Available so far: %s\n", req.Previous.AvailableSummary())
		fmt.Fprintf(&b, "%s\n", req.Previous.TakenPatternSummary())
		if req.Previous.TargetCount > 0 {
			fmt.Fprintf(&b, "Target: %d good available domains.\n", req.Previous.TargetCount)
		}
	}
	return b.String()
}
