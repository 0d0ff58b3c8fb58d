package config

import "testing"

func TestLoad_AllVarsSet(t *testing.T) {
	t.Setenv("DOMAINSEARCH_API_KEYS", "key1,key2")
	t.Setenv("DOMAINSEARCH_LISTEN_ADDR", ":9090")
	t.Setenv("DOMAINSEARCH_DATA_DIR", "/tmp/domainsearch-data")
	t.Setenv("MAX_BATCHES", "8")
	t.Setenv("CANDIDATES_PER_BATCH", "75")
	t.Setenv("TARGET_RESULTS", "30")
	t.Setenv("BUNDLED_MAX", "2500")
	t.Setenv("RECOMMENDED_MAX", "4500")
	t.Setenv("DRIVER_PROVIDER", "deepseek")
	t.Setenv("SWARM_PROVIDER", "kimi")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[0] != "key1" || cfg.APIKeys[1] != "key2" {
		t.Errorf("APIKeys = %v, want [key1 key2]", cfg.APIKeys)
	}
	if cfg.DataDir != "/tmp/domainsearch-data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/tmp/domainsearch-data")
	}
	if cfg.Search.MaxBatches != 8 {
		t.Errorf("MaxBatches = %d, want 8", cfg.Search.MaxBatches)
	}
	if cfg.Search.CandidatesPerBatch != 75 {
		t.Errorf("CandidatesPerBatch = %d, want 75", cfg.Search.CandidatesPerBatch)
	}
	if cfg.Search.TargetGoodResults != 30 {
		t.Errorf("TargetGoodResults = %d, want 30", cfg.Search.TargetGoodResults)
	}
	if cfg.Pricing.BundledMaxCents != 2500 || cfg.Pricing.RecommendedMaxCents != 4500 {
		t.Errorf("Pricing = %+v, want {2500 4500}", cfg.Pricing)
	}
	if cfg.Models.DriverProvider != "deepseek" || cfg.Models.SwarmProvider != "kimi" {
		t.Errorf("Models = %+v, want {deepseek kimi}", cfg.Models)
	}
}

func TestLoad_MissingAPIKeys(t *testing.T) {
	t.Setenv("DOMAINSEARCH_API_KEYS", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DOMAINSEARCH_API_KEYS is empty, got nil")
	}
}

func TestLoad_InvalidDriverProvider(t *testing.T) {
	t.Setenv("DOMAINSEARCH_API_KEYS", "somekey")
	t.Setenv("DRIVER_PROVIDER", "gpt-4")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid driver provider, got nil")
	}
}

func TestLoad_InvalidSwarmProvider(t *testing.T) {
	t.Setenv("DOMAINSEARCH_API_KEYS", "somekey")
	t.Setenv("SWARM_PROVIDER", "not-a-provider")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid swarm provider, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOMAINSEARCH_API_KEYS", "defaultkey")
	for _, v := range []string{
		"DOMAINSEARCH_LISTEN_ADDR", "DOMAINSEARCH_DATA_DIR", "MAX_BATCHES",
		"CANDIDATES_PER_BATCH", "TARGET_RESULTS", "ALARM_DELAY",
		"BUNDLED_MAX", "RECOMMENDED_MAX", "DRIVER_PROVIDER", "SWARM_PROVIDER",
	} {
		t.Setenv(v, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error with defaults, got: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("default ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.DataDir != "./data" {
		t.Errorf("default DataDir = %q, want %q", cfg.DataDir, "./data")
	}
	if cfg.Search.MaxBatches != 6 {
		t.Errorf("default MaxBatches = %d, want 6", cfg.Search.MaxBatches)
	}
	if cfg.Search.TargetGoodResults != 25 {
		t.Errorf("default TargetGoodResults = %d, want 25", cfg.Search.TargetGoodResults)
	}
	if cfg.Search.BatchTimerDelaySeconds != 10 {
		t.Errorf("default BatchTimerDelaySeconds = %d, want 10", cfg.Search.BatchTimerDelaySeconds)
	}
	if cfg.Pricing.BundledMaxCents != 3000 || cfg.Pricing.RecommendedMaxCents != 5000 {
		t.Errorf("default Pricing = %+v, want {3000 5000}", cfg.Pricing)
	}
	if cfg.Models.DriverProvider != ProviderClaude || cfg.Models.SwarmProvider != ProviderClaude {
		t.Errorf("default Models = %+v, want claude/claude", cfg.Models)
	}
}

func TestFast_ReducesDelaysForDevelopment(t *testing.T) {
	cfg := Fast()
	if cfg.Search.BatchTimerDelaySeconds != 1 {
		t.Errorf("Fast BatchTimerDelaySeconds = %d, want 1", cfg.Search.BatchTimerDelaySeconds)
	}
	if cfg.RateLimit.RDAPSlotInterval != 0.2 {
		t.Errorf("Fast RDAPSlotInterval = %v, want 0.2", cfg.RateLimit.RDAPSlotInterval)
	}
}

func TestCheap_ReducesCandidatesPerBatch(t *testing.T) {
	cfg := Cheap()
	if cfg.Search.CandidatesPerBatch != 25 {
		t.Errorf("Cheap CandidatesPerBatch = %d, want 25", cfg.Search.CandidatesPerBatch)
	}
}

func TestPricingCategory(t *testing.T) {
	p := Pricing{BundledMaxCents: 3000, RecommendedMaxCents: 5000}
	cheap, premium, mid := 2000, 6000, 4000
	tests := []struct {
		name  string
		price *int
		want  string
	}{
		{"nil is unknown", nil, "unknown"},
		{"at or under bundled cutoff", &cheap, "bundled"},
		{"between cutoffs is recommended", &mid, "recommended"},
		{"above recommended cutoff is premium", &premium, "premium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Category(tt.price); got != tt.want {
				t.Errorf("Category(%v) = %q, want %q", tt.price, got, tt.want)
			}
		})
	}
}
