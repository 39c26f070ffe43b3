package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "gsk...abc"
}

// CheckAPIKeys returns the status of the configured LLM key.
// Ollama needs no key, so it reports nothing.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	switch cfg.LLM.Provider {
	case "groq":
		return []KeyStatus{checkKey("Groq API Key", cfg.LLM.APIKey, "STOCKAI_LLM_API_KEY", "GROQ_API_KEY")}
	case "openai":
		return []KeyStatus{checkKey("OpenAI API Key", cfg.LLM.APIKey, "STOCKAI_LLM_API_KEY", "OPENAI_API_KEY")}
	default:
		return nil
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
