package embedder

import (
	"fmt"
	"time"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override via Config.Dimensions.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config selects and parameterises an embedding backend.
type Config struct {
	// Provider selects the backend: ollama, openai, azure.
	Provider string
	// Model is the embedding model name ("" = backend default).
	Model string
	// Endpoint is the backend base URL ("" = backend default).
	Endpoint string
	// APIKey is the backend credential (not used by ollama).
	APIKey string
	// Dimensions overrides the embedding vector size (0 = model default).
	Dimensions int
	// BatchSize is the maximum number of texts per backend request.
	BatchSize int
	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string
	// Timeout bounds each backend HTTP request.
	Timeout time.Duration
}

// DefaultDimensions returns the embedding vector size for the given config.
// Callers that must pre-size a vector collection (e.g. Qdrant collection
// creation) should use this rather than hardcoding a value.
func (c Config) DefaultDimensions() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	switch c.Provider {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs an Embedder for the configured backend.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:      host,
			Model:     model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires an API key")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires an endpoint")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Azure:      true,
			APIVersion: apiVersion,
			Timeout:    cfg.Timeout,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Provider)
	}
}
