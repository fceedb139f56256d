package config

import "os"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AIModels defines which model serves each AI operation
type AIModels struct {
	// Generation authors new survey questions (quality over speed)
	Generation string `json:"generation"`

	// Validation scores a submitted answer (needs to be fast)
	Validation string `json:"validation"`

	// Adaptive generates follow-ups mid-session (needs to be fast)
	Adaptive string `json:"adaptive"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	Provider  string   `json:"provider"`
	APIKey    string   `json:"-"` // Never serialize
	BaseURL   string   `json:"baseUrl"`
	Models    AIModels `json:"models"`
	TimeoutMS int      `json:"timeoutMs"`
}

// DefaultAIConfig returns the AI configuration from the environment
func DefaultAIConfig() *AIConfig {
	provider := getEnv("AI_PROVIDER", ProviderOpenAI)

	cfg := &AIConfig{
		Provider:  provider,
		TimeoutMS: getEnvInt("AI_TIMEOUT_MS", 10000),
	}

	switch provider {
	case ProviderGemini:
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		cfg.BaseURL = getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models")
		cfg.Models = AIModels{
			Generation: getEnv("AI_MODEL_GENERATION", "gemini-2.0-flash"),
			Validation: getEnv("AI_MODEL_VALIDATION", "gemini-2.5-flash-preview-05-20"),
			Adaptive:   getEnv("AI_MODEL_ADAPTIVE", "gemini-2.5-flash-preview-05-20"),
		}
	default:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AI_BASE_URL")
		cfg.Models = AIModels{
			Generation: getEnv("AI_MODEL_GENERATION", "gpt-4"),
			Validation: getEnv("AI_MODEL_VALIDATION", "gpt-4"),
			Adaptive:   getEnv("AI_MODEL_ADAPTIVE", "gpt-4"),
		}
	}
	return cfg
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full Gemini endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}
