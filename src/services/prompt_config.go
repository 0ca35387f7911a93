package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the summarization prompt templates and model settings,
// loaded from prompts.yaml so prompt tuning never needs a rebuild
type PromptConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	System      string  `yaml:"system"`
	// User is the human-turn template; {readme_content} is replaced with the
	// repository README text
	User string `yaml:"user"`
}

// DefaultPromptConfig returns the built-in prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.5,
		System:      "You are a technical analyst that provides concise repository summaries.",
		User:        "Please analyze and summarize this GitHub repository README content.\n\nREADME CONTENT:\n{readme_content}",
	}
}

// LoadPromptConfig loads prompt configuration from a YAML file.
// Empty fields fall back to the built-in defaults.
func LoadPromptConfig(path string) (*PromptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	if cfg.Model == "" || cfg.System == "" || cfg.User == "" {
		defaults := DefaultPromptConfig()
		if cfg.Model == "" {
			cfg.Model = defaults.Model
		}
		if cfg.System == "" {
			cfg.System = defaults.System
		}
		if cfg.User == "" {
			cfg.User = defaults.User
		}
	}

	return cfg, nil
}
