// Package config centralizes environment-driven settings for the domain
// search service. All magic numbers, API keys, and behavior thresholds live
// here; the only other os.Getenv call in the module is the domainsearchctl
// CLI's DOMAINSEARCH_API_KEY flag default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider names recognized by internal/provider.
const (
	ProviderClaude     = "claude"
	ProviderDeepSeek   = "deepseek"
	ProviderKimi       = "kimi"
	ProviderCloudflare = "cloudflare"
)

var validProviders = map[string]bool{
	ProviderClaude:     true,
	ProviderDeepSeek:   true,
	ProviderKimi:       true,
	ProviderCloudflare: true,
}

// ProviderDefaultModel returns the default model id for a provider name.
func ProviderDefaultModel(provider string) string {
	switch provider {
	case ProviderClaude:
		return "claude-sonnet-4-20250514"
	case ProviderKimi:
		return "kimi-k2-0528"
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderCloudflare:
		return "@cf/meta/llama-4-scout-17b-16e-instruct"
	default:
		return ""
	}
}

// ProviderCost holds approximate USD cost per 1M tokens, used only for the
// estimated-cost figure surfaced in /status.
type ProviderCost struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var providerCosts = map[string]ProviderCost{
	ProviderClaude:     {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	ProviderKimi:       {InputPerMillion: 0.60, OutputPerMillion: 2.50},
	ProviderDeepSeek:   {InputPerMillion: 0.28, OutputPerMillion: 0.42},
	ProviderCloudflare: {InputPerMillion: 0.27, OutputPerMillion: 0.85},
}

// ProviderCostFor returns the per-provider cost table entry, or the zero
// value if the provider is unrecognized.
func ProviderCostFor(provider string) ProviderCost {
	return providerCosts[provider]
}

// ValidProvider reports whether name is one of the four recognized
// provider names. Used by /start to reject driver_provider/swarm_provider
// overrides that don't match any concrete adapter.
func ValidProvider(name string) bool {
	return validProviders[name]
}

// RateLimits controls how fast the core hits external services.
type RateLimits struct {
	RDAPSlotInterval  float64 // seconds between RDAP dispatches (§4.2 step 7)
	MaxConcurrentRDAP int     // worker pool size for availability checks
	MaxConcurrentEval int     // concurrency ceiling for evaluator chunks (§4.2 step 5)
	EvalChunkSize     int     // domains per evaluator call
	APIRequestsPerSec int     // per-IP HTTP ingress rate limit, 0 disables
}

// Search controls the batch orchestrator's termination behavior (§4.1, §4.2).
type Search struct {
	MaxBatches             int
	CandidatesPerBatch     int
	TargetGoodResults      int
	BatchTimerDelaySeconds int // re-arm delay between batches (§4.2 step 11, §5)
}

// Pricing holds the cents-denominated category cutoffs (§9 open question:
// the cutoffs are cents, not dollars).
type Pricing struct {
	BundledMaxCents     int
	RecommendedMaxCents int
}

// Category classifies a price in cents into a pricing bucket (§4.1 results()).
func (p Pricing) Category(priceCents *int) string {
	if priceCents == nil {
		return "unknown"
	}
	switch {
	case *priceCents <= p.BundledMaxCents:
		return "bundled"
	case *priceCents <= p.RecommendedMaxCents:
		return "recommended"
	default:
		return "premium"
	}
}

// Models selects the default generator/evaluator providers for jobs that
// don't override them in /start.
type Models struct {
	DriverProvider string
	SwarmProvider  string
}

// Providers holds credentials for the four concrete model providers.
type Providers struct {
	ClaudeAPIKey       string
	DeepSeekAPIKey     string
	KimiAPIKey         string
	CloudflareAPIToken string
	CloudflareAccount  string
}

// Notify configures the results/followup webhook dispatch (internal/notify).
type Notify struct {
	WebhookURL string // empty disables notification dispatch entirely
}

// PricingAPI configures the registrar bulk-pricing contract (internal/pricing).
type PricingAPI struct {
	URL    string
	APIKey string
}

// Config is the master settings object for the server.
type Config struct {
	ListenAddr  string
	DataDir     string // parent directory for per-job sqlite files + index.db
	APIKeys     []string
	CORSOrigins []string

	RateLimit  RateLimits
	Search     Search
	Pricing    Pricing
	Models     Models
	Providers  Providers
	Notify     Notify
	PricingAPI PricingAPI
}

// Load builds a Config from environment variables, applying the defaults
// documented in spec.md §6.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: getEnv("DOMAINSEARCH_LISTEN_ADDR", ":8080"),
		DataDir:    getEnv("DOMAINSEARCH_DATA_DIR", "./data"),
	}

	rawKeys := getEnv("DOMAINSEARCH_API_KEYS", "")
	if rawKeys == "" {
		return nil, errors.New("DOMAINSEARCH_API_KEYS must not be empty")
	}
	for _, k := range strings.Split(rawKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.APIKeys = append(cfg.APIKeys, k)
		}
	}
	if len(cfg.APIKeys) == 0 {
		return nil, errors.New("DOMAINSEARCH_API_KEYS contains no valid keys")
	}

	if raw := getEnv("DOMAINSEARCH_CORS_ORIGINS", ""); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	var err error
	if cfg.Search.MaxBatches, err = getEnvInt("MAX_BATCHES", 6); err != nil {
		return nil, err
	}
	if cfg.Search.CandidatesPerBatch, err = getEnvInt("CANDIDATES_PER_BATCH", 50); err != nil {
		return nil, err
	}
	if cfg.Search.TargetGoodResults, err = getEnvInt("TARGET_RESULTS", 25); err != nil {
		return nil, err
	}
	if cfg.Search.BatchTimerDelaySeconds, err = getEnvInt("ALARM_DELAY", 10); err != nil {
		return nil, err
	}

	if cfg.Pricing.BundledMaxCents, err = getEnvInt("BUNDLED_MAX", 3000); err != nil {
		return nil, err
	}
	if cfg.Pricing.RecommendedMaxCents, err = getEnvInt("RECOMMENDED_MAX", 5000); err != nil {
		return nil, err
	}

	cfg.RateLimit.RDAPSlotInterval = getEnvFloat("RDAP_DELAY", 0.5)
	if cfg.RateLimit.MaxConcurrentRDAP, err = getEnvInt("MAX_CONCURRENT_RDAP", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MaxConcurrentEval, err = getEnvInt("MAX_CONCURRENT_AI", 12); err != nil {
		return nil, err
	}
	if cfg.RateLimit.EvalChunkSize, err = getEnvInt("EVAL_CHUNK_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimit.APIRequestsPerSec, err = getEnvInt("DOMAINSEARCH_RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}

	cfg.Models.DriverProvider = getEnv("DRIVER_PROVIDER", ProviderClaude)
	if !validProviders[cfg.Models.DriverProvider] {
		return nil, fmt.Errorf("DRIVER_PROVIDER %q must be one of: claude, kimi, deepseek, cloudflare", cfg.Models.DriverProvider)
	}
	cfg.Models.SwarmProvider = getEnv("SWARM_PROVIDER", ProviderClaude)
	if !validProviders[cfg.Models.SwarmProvider] {
		return nil, fmt.Errorf("SWARM_PROVIDER %q must be one of: claude, kimi, deepseek, cloudflare", cfg.Models.SwarmProvider)
	}

	cfg.Providers.ClaudeAPIKey = getEnv("ANTHROPIC_API_KEY", "")
	cfg.Providers.DeepSeekAPIKey = getEnv("DEEPSEEK_API_KEY", "")
	cfg.Providers.KimiAPIKey = getEnv("KIMI_API_KEY", "")
	cfg.Providers.CloudflareAPIToken = getEnv("CLOUDFLARE_API_TOKEN", "")
	cfg.Providers.CloudflareAccount = getEnv("CLOUDFLARE_ACCOUNT_ID", "")

	cfg.Notify.WebhookURL = getEnv("DOMAINSEARCH_RESULTS_WEBHOOK_URL", "")

	cfg.PricingAPI.URL = getEnv("PRICING_API_URL", "")
	cfg.PricingAPI.APIKey = getEnv("PRICING_API_KEY", "")

	return cfg, nil
}

// Fast returns a development preset with aggressive rate limits, mirroring
// grove_domain_tool's Config.fast_mode().
func Fast() *Config {
	cfg := defaults()
	cfg.RateLimit.RDAPSlotInterval = 0.2
	cfg.Search.BatchTimerDelaySeconds = 1
	return cfg
}

// Cheap returns a cost-minimizing preset with fewer candidates per batch,
// mirroring grove_domain_tool's Config.cheap_mode().
func Cheap() *Config {
	cfg := defaults()
	cfg.Search.CandidatesPerBatch = 25
	return cfg
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":8080",
		DataDir:    "./data",
		RateLimit: RateLimits{
			RDAPSlotInterval:  0.5,
			MaxConcurrentRDAP: 5,
			MaxConcurrentEval: 12,
			EvalChunkSize:     10,
			APIRequestsPerSec: 5,
		},
		Search: Search{
			MaxBatches:             6,
			CandidatesPerBatch:     50,
			TargetGoodResults:      25,
			BatchTimerDelaySeconds: 10,
		},
		Pricing: Pricing{BundledMaxCents: 3000, RecommendedMaxCents: 5000},
		Models:  Models{DriverProvider: ProviderClaude, SwarmProvider: ProviderClaude},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, v)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
