package provider

import (
	"fmt"

	"github.com/groveplace/domainsearch/internal/config"
)

// New constructs the concrete provider named by providerName, wiring its
// credentials from cfg (§6 "DRIVER_PROVIDER / SWARM_PROVIDER defaults
// (in {claude, deepseek, kimi, cloudflare})").
func New(providerName string, cfg *config.Config) (Provider, error) {
	model := config.ProviderDefaultModel(providerName)
	switch providerName {
	case config.ProviderClaude:
		return NewClaudeProvider(cfg.Providers.ClaudeAPIKey, model), nil
	case config.ProviderDeepSeek:
		return NewDeepSeekProvider(cfg.Providers.DeepSeekAPIKey, model), nil
	case config.ProviderKimi:
		return NewKimiProvider(cfg.Providers.KimiAPIKey, model), nil
	case config.ProviderCloudflare:
		return NewCloudflareProvider(cfg.Providers.CloudflareAPIToken, cfg.Providers.CloudflareAccount, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}
