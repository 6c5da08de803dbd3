package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks the configuration for obvious misconfiguration.
// It is called by Load; call it again after manual mutation in tests.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
			return fmt.Errorf("%w: ollama_host must be an http(s) URL, got %q", ErrInvalidProvider, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if strings.TrimSpace(c.IndexDir) == "" {
		return fmt.Errorf("%w: index_dir must not be empty", ErrInvalidIndexDir)
	}
	if c.TopK < 1 || c.TopK > MaxAllowedTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d, got %d", ErrInvalidTopK, MaxAllowedTopK, c.TopK)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port out of range: %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgres)
	}

	return nil
}
