package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Default per-benchmark output ceilings. MMLU answers are a single letter;
// GSM8K and BBH need room for worked reasoning.
const (
	defaultMMLUMaxTokens  = 1
	defaultGSM8KMaxTokens = 500
	defaultBBHMaxTokens   = 1000
)

type Config struct {
	Providers  map[string]ProviderConfig  `yaml:"providers,omitempty"`
	Models     []ModelConfig              `yaml:"models,omitempty"`
	Benchmarks map[string]BenchmarkConfig `yaml:"benchmarks,omitempty"`
	Storage    StorageConfig              `yaml:"storage"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type ModelConfig struct {
	Name                 string  `yaml:"name"`
	Provider             string  `yaml:"provider"`
	InputCostPerMillion  float64 `yaml:"input_cost_per_million"`
	OutputCostPerMillion float64 `yaml:"output_cost_per_million"`
	BatchQueueLimit      int     `yaml:"batch_queue_limit"`
}

type BenchmarkConfig struct {
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

// DefaultSQLitePath is used when storage.path is left empty.
const DefaultSQLitePath = "data/batch-eval.db"

// DSN resolves the storage block to a SQLite data source name. "memory"
// is shorthand for an in-memory database.
func (s StorageConfig) DSN() (string, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "", "sqlite":
		if path := strings.TrimSpace(s.Path); path != "" {
			return path, nil
		}
		return DefaultSQLitePath, nil
	case "memory":
		return ":memory:", nil
	default:
		return "", fmt.Errorf("config: unsupported storage type %q", s.Type)
	}
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if c.Benchmarks == nil {
		c.Benchmarks = make(map[string]BenchmarkConfig)
	}
	setBenchmarkDefault(c.Benchmarks, "mmlu", defaultMMLUMaxTokens)
	setBenchmarkDefault(c.Benchmarks, "gsm8k", defaultGSM8KMaxTokens)
	setBenchmarkDefault(c.Benchmarks, "bbh", defaultBBHMaxTokens)
}

func setBenchmarkDefault(m map[string]BenchmarkConfig, name string, maxTokens int) {
	if b, ok := m[name]; !ok || b.MaxOutputTokens <= 0 {
		m[name] = BenchmarkConfig{MaxOutputTokens: maxTokens}
	}
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string][]string{
		"openai":    {"OPENAI_API_KEY"},
		"anthropic": {"ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN"},
		"google":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	for provider, envs := range overrides {
		for _, env := range envs {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				p := c.Providers[provider]
				p.APIKey = v
				c.Providers[provider] = p
				break
			}
		}
	}
}

// Model returns the configuration for a model by name.
func (c *Config) Model(name string) (ModelConfig, bool) {
	name = strings.TrimSpace(name)
	for _, m := range c.Models {
		if strings.EqualFold(strings.TrimSpace(m.Name), name) {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// MaxOutputTokens returns the output ceiling for a benchmark, defaulting to 1.
func (c *Config) MaxOutputTokens(benchmarkName string) int {
	b, ok := c.Benchmarks[strings.ToLower(strings.TrimSpace(benchmarkName))]
	if !ok || b.MaxOutputTokens <= 0 {
		return 1
	}
	return b.MaxOutputTokens
}

// BenchmarkNames lists the configured benchmarks.
func (c *Config) BenchmarkNames() []string {
	names := make([]string, 0, len(c.Benchmarks))
	for name := range c.Benchmarks {
		names = append(names, name)
	}
	return names
}
