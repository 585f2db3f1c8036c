// Package config loads config.yaml and builds the typed configs the rest of
// the system consumes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fx_pricing_agents/internal/agents"
	"fx_pricing_agents/internal/core"
	"fx_pricing_agents/internal/logger"
	"fx_pricing_agents/internal/storage"
)

// YAMLConfig represents the structure of config.yaml
type YAMLConfig struct {
	Model struct {
		Name        string  `yaml:"name"`
		BaseURL     string  `yaml:"base_url"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"model"`
	Pipeline struct {
		AppName          string    `yaml:"app_name"`
		FallbackFXRate   float64   `yaml:"fallback_fx_rate"`
		FXShocks         []float64 `yaml:"fx_shocks"`
		PriceMultipliers []float64 `yaml:"price_multipliers"`
	} `yaml:"pipeline"`
	Memory struct {
		MaxSessionsPerKey int `yaml:"max_sessions_per_key"`
	} `yaml:"memory"`
	Redis struct {
		URL        string `yaml:"url"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`
	Log logger.Config `yaml:"log"`
}

// LoadConfig loads configuration from config.yaml
func LoadConfig(filepath string) (*YAMLConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config YAMLConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	return &config, nil
}

// BuildModelConfig creates the chat model config from YAML config and the API
// key taken from the environment.
func BuildModelConfig(yamlConfig *YAMLConfig, apiKey string) agents.ModelConfig {
	cfg := agents.ModelConfig{
		Model:       yamlConfig.Model.Name,
		APIKey:      apiKey,
		BaseURL:     yamlConfig.Model.BaseURL,
		MaxTokens:   yamlConfig.Model.MaxTokens,
		Temperature: yamlConfig.Model.Temperature,
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1800
	}
	return cfg
}

// BuildPipelineOptions creates core.Options from YAML config. Zero values are
// filled in by the pipeline itself.
func BuildPipelineOptions(yamlConfig *YAMLConfig) core.Options {
	return core.Options{
		AppName:          yamlConfig.Pipeline.AppName,
		FallbackFXRate:   yamlConfig.Pipeline.FallbackFXRate,
		FXShocks:         yamlConfig.Pipeline.FXShocks,
		PriceMultipliers: yamlConfig.Pipeline.PriceMultipliers,
	}
}

// BuildMemoryService creates the session store with the configured bucket cap.
func BuildMemoryService(yamlConfig *YAMLConfig) *storage.MemoryService {
	return storage.NewMemoryService(yamlConfig.Memory.MaxSessionsPerKey)
}

// RedisTTL returns the configured snapshot TTL.
func RedisTTL(yamlConfig *YAMLConfig) time.Duration {
	return time.Duration(yamlConfig.Redis.TTLSeconds) * time.Second
}
