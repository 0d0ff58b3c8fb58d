// Package evaluator is the Evaluator Adapter (C4, spec.md §4.4): it scores
// generator candidates in parallel chunks and falls back to a heuristic,
// content-free scorer when a chunk's provider call fails or returns a
// malformed reply.
package evaluator

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/groveplace/domainsearch/internal/provider"
)

const systemPrompt = `You are a brand evaluator. Score each domain candidate for pronounceability, memorability, brand fit, and email-friendliness. Be honest about weak candidates.`

// Evaluation is one scored candidate (§3 DomainResult's evaluator fields).
type Evaluation struct {
	Domain        string
	Score         float64
	WorthChecking bool
	Pronounceable bool
	Memorable     bool
	BrandFit      bool
	EmailFriendly bool
	Flags         []string
	Notes         string
}

// Evaluator is the Evaluator Adapter.
type Evaluator struct {
	provider      provider.Provider
	model         string
	chunkSize     int
	maxConcurrent int
}

// New constructs an Evaluator. chunkSize and maxConcurrent default to the
// spec's ≈10/≈12 when zero (§4.2 step 5, §4.4).
func New(p provider.Provider, model string, chunkSize, maxConcurrent int) *Evaluator {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 12
	}
	return &Evaluator{provider: p, model: model, chunkSize: chunkSize, maxConcurrent: maxConcurrent}
}

// Evaluate scores every domain, dispatching chunks concurrently up to the
// configured ceiling (§4.2 step 5, §5 "up to ≈12 concurrent evaluator chunk
// calls"). A chunk whose provider call errors or whose reply doesn't cover
// every domain in the chunk is filled in with HeuristicEvaluate rather than
// dropped (§4.4 "Missing records... are filled with the heuristic
// evaluation rather than dropped").
func (e *Evaluator) Evaluate(ctx context.Context, domains []string, vibe, businessName string) ([]Evaluation, provider.Usage) {
	if len(domains) == 0 {
		return nil, provider.Usage{}
	}

	chunks := chunk(domains, e.chunkSize)
	results := make([][]Evaluation, len(chunks))

	var mu sync.Mutex
	var usage provider.Usage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			evals, u := e.evaluateChunk(gctx, c, vibe, businessName)
			results[i] = evals
			mu.Lock()
			usage.InputTokens += u.InputTokens
			usage.OutputTokens += u.OutputTokens
			mu.Unlock()
			return nil
		})
	}
	// errgroup.Go's functions never return non-nil; chunk failures are
	// absorbed internally so one bad chunk never cancels the others.
	_ = g.Wait()

	var out []Evaluation
	for _, r := range results {
		out = append(out, r...)
	}
	return out, usage
}

func (e *Evaluator) evaluateChunk(ctx context.Context, domains []string, vibe, businessName string) ([]Evaluation, provider.Usage) {
	prompt := buildPrompt(domains, vibe, businessName)
	opts := provider.GenerateOptions{
		System:      systemPrompt,
		Model:       e.model,
		MaxTokens:   2048,
		Temperature: 0.3,
	}

	if e.provider.SupportsTools() {
		opts.ToolChoice = provider.ToolChoice(provider.EvaluatorTool.Name)
		resp, err := e.provider.GenerateWithTools(ctx, prompt, []provider.ToolDefinition{provider.EvaluatorTool}, opts)
		if err == nil {
			if resp.HasToolCall() {
				return fillMissing(parseToolCall(resp.ToolCalls), domains), resp.Usage
			}
			return fillMissing(parseContent(resp.Content), domains), resp.Usage
		}
	}

	opts.ToolChoice = ""
	resp, err := e.provider.Generate(ctx, prompt, opts)
	if err != nil {
		return heuristicAll(domains), provider.Usage{}
	}
	return fillMissing(parseContent(resp.Content), domains), resp.Usage
}

func buildPrompt(domains []string, vibe, businessName string) string {
	var b strings.Builder
	b.WriteString("Business: ")
	b.WriteString(businessName)
	b.WriteString("\nVibe: ")
	b.WriteString(vibe)
	b.WriteString("\nEvaluate these domain candidates:\n")
	for _, d := range domains {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}

// parseToolCall extracts evaluations from a tool-call reply, keyed by
// lowercase domain so later fillMissing can tell what's covered.
func parseToolCall(calls []provider.ToolCall) map[string]Evaluation {
	out := map[string]Evaluation{}
	for _, tc := range calls {
		if tc.ToolName != provider.EvaluatorTool.Name {
			continue
		}
		raw, ok := tc.Arguments["evaluations"]
		if !ok {
			continue
		}
		for _, item := range toAnySlice(raw) {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			ev, ok := evaluationFromMap(m)
			if ok {
				out[strings.ToLower(ev.Domain)] = ev
			}
		}
	}
	return out
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

func parseContent(content string) map[string]Evaluation {
	out := map[string]Evaluation{}
	m := jsonObjectPattern.FindString(content)
	if m == "" {
		return out
	}
	var data struct {
		Evaluations []map[string]any `json:"evaluations"`
	}
	if err := json.Unmarshal([]byte(m), &data); err != nil {
		return out
	}
	for _, item := range data.Evaluations {
		ev, ok := evaluationFromMap(item)
		if ok {
			out[strings.ToLower(ev.Domain)] = ev
		}
	}
	return out
}

func evaluationFromMap(m map[string]any) (Evaluation, bool) {
	domain, ok := m["domain"].(string)
	if !ok || domain == "" {
		return Evaluation{}, false
	}
	ev := Evaluation{
		Domain:        domain,
		Score:         0.5,
		WorthChecking: true,
		Pronounceable: true,
		Memorable:     true,
		BrandFit:      true,
		EmailFriendly: true,
	}
	if v, ok := m["score"].(float64); ok {
		ev.Score = v
	}
	if v, ok := m["worth_checking"].(bool); ok {
		ev.WorthChecking = v
	}
	if v, ok := m["pronounceable"].(bool); ok {
		ev.Pronounceable = v
	}
	if v, ok := m["memorable"].(bool); ok {
		ev.Memorable = v
	}
	if v, ok := m["brand_fit"].(bool); ok {
		ev.BrandFit = v
	}
	if v, ok := m["email_friendly"].(bool); ok {
		ev.EmailFriendly = v
	}
	if v, ok := m["notes"].(string); ok {
		ev.Notes = v
	}
	if raw, ok := m["flags"]; ok {
		for _, f := range toAnySlice(raw) {
			if s, ok := f.(string); ok {
				ev.Flags = append(ev.Flags, s)
			}
		}
	}
	return ev, true
}

func toAnySlice(raw any) []any {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	return arr
}

// fillMissing completes parsed with a heuristic evaluation for every
// requested domain that the reply didn't cover (§4.4).
func fillMissing(parsed map[string]Evaluation, domains []string) []Evaluation {
	out := make([]Evaluation, 0, len(domains))
	for _, d := range domains {
		if ev, ok := parsed[strings.ToLower(d)]; ok {
			out = append(out, ev)
		} else {
			out = append(out, HeuristicEvaluate(d))
		}
	}
	return out
}

func heuristicAll(domains []string) []Evaluation {
	out := make([]Evaluation, len(domains))
	for i, d := range domains {
		out[i] = HeuristicEvaluate(d)
	}
	return out
}

var tldWeights = map[string]float64{
	"com": 1.0, "co": 0.9, "io": 0.85, "dev": 0.8,
	"app": 0.8, "me": 0.75, "net": 0.7, "org": 0.7,
}

var consonantRunPattern = regexp.MustCompile(`(?i)[bcdfghjklmnpqrstvwxyz]{4,}`)
var digitPattern = regexp.MustCompile(`[0-9]`)

// HeuristicEvaluate is the content-free fallback evaluator (§4.4): a
// domain-shaped string in, a deterministic score out, with no provider
// call. Used when a chunk's tool/JSON reply is malformed, a provider call
// fails, or a reply omits a requested domain.
func HeuristicEvaluate(domain string) Evaluation {
	name, tld := splitDomain(domain)

	lengthScore := 1.0
	if len(name) > 8 {
		lengthScore = 1.0 - float64(len(name)-8)*0.07
		if lengthScore < 0.3 {
			lengthScore = 0.3
		}
	}

	tldScore, ok := tldWeights[tld]
	if !ok {
		tldScore = 0.5
	}

	pronounceable := !consonantRunPattern.MatchString(name)
	hasDigits := digitPattern.MatchString(name)
	hasHyphens := strings.Contains(name, "-")

	score := (lengthScore + tldScore) / 2
	if !pronounceable {
		score *= 0.7
	}
	if hasDigits {
		score *= 0.8
	}
	if hasHyphens {
		score *= 0.85
	}
	score = math.Round(score*100) / 100

	var flags []string
	if hasDigits {
		flags = append(flags, "contains numbers")
	}
	if hasHyphens {
		flags = append(flags, "contains hyphens")
	}
	if !pronounceable {
		flags = append(flags, "hard to pronounce")
	}

	return Evaluation{
		Domain:        domain,
		Score:         score,
		WorthChecking: score > 0.4,
		Pronounceable: pronounceable,
		Memorable:     len(name) <= 12,
		BrandFit:      score > 0.5,
		EmailFriendly: !hasDigits && !hasHyphens,
		Flags:         flags,
		Notes:         "heuristic fallback",
	}
}

func chunk(domains []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(domains); i += size {
		end := i + size
		if end > len(domains) {
			end = len(domains)
		}
		out = append(out, domains[i:end])
	}
	return out
}

func splitDomain(domain string) (name, tld string) {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return domain, ""
	}
	return domain[:idx], domain[idx+1:]
}

// FilterWorthChecking retains evaluations clearing both the worth_checking
// flag and the 0.4 admission threshold (§4.2 step 6). This is distinct from
// the 0.8 termination threshold applied later over DomainResult rows — the
// two must never be conflated (§9).
func FilterWorthChecking(evals []Evaluation, minScore float64) []Evaluation {
	out := evals[:0]
	for _, e := range evals {
		if e.WorthChecking && e.Score >= minScore {
			out = append(out, e)
		}
	}
	return out
}
