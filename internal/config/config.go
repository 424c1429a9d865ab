package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Dataset struct {
		Path        string `yaml:"path"`
		SampleLimit int    `yaml:"sample_limit"`
	} `yaml:"dataset"`

	OpenRouter struct {
		APIKey    string   `yaml:"api_key"`
		BaseURL   string   `yaml:"base_url"`
		ModelName string   `yaml:"model_name"`
		Models    []string `yaml:"models"`
		Referer   string   `yaml:"referer"`
		Title     string   `yaml:"title"`
	} `yaml:"openrouter"`

	Export struct {
		StaticDir string `yaml:"static_dir"`
		Output    string `yaml:"output"`
	} `yaml:"export"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8003"
	}

	if config.Dataset.Path == "" {
		config.Dataset.Path = "./data/reviews_projected.csv"
	}

	if config.Dataset.SampleLimit == 0 {
		config.Dataset.SampleLimit = 20
	}

	if config.OpenRouter.BaseURL == "" {
		config.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}

	if config.OpenRouter.ModelName == "" {
		config.OpenRouter.ModelName = "amazon/nova-2-lite-v1:free"
	}

	if len(config.OpenRouter.Models) == 0 {
		config.OpenRouter.Models = []string{
			"amazon/nova-2-lite-v1:free",
			"nvidia/nemotron-nano-12b-v2-vl:free",
			"alibaba/tongyi-deepresearch-30b-a3b:free",
			"nvidia/nemotron-nano-9b-v2:free",
			"z-ai/glm-4.5-air:free",
			"mistralai/mistral-small-3.1-24b-instruct:free",
		}
	}

	if config.OpenRouter.Referer == "" {
		config.OpenRouter.Referer = "http://localhost:8003"
	}

	if config.OpenRouter.Title == "" {
		config.OpenRouter.Title = "Review Atlas"
	}

	if config.Export.Output == "" {
		config.Export.Output = "atlas_export.zip"
	}

	// Expand environment variables in the API key
	config.OpenRouter.APIKey = os.ExpandEnv(config.OpenRouter.APIKey)
	if config.OpenRouter.APIKey == "" {
		config.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	return config, nil
}
