package api

import (
	"net/http"
	"slices"

	"github.com/seenimoa/stockai/internal/config"
)

const redactedKey = "***"

// handleGetConfig returns the running configuration with API keys redacted.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, redacted(s.cfg), false)
}

// handleGetConfigKeys returns the status of the configured LLM keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	if keys == nil {
		keys = []config.KeyStatus{}
	}
	writeData(w, keys, false)
}

// redacted copies cfg, masking every API key that is set.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	out.LLM.APIKey = mask(out.LLM.APIKey)
	out.LLM.Fallbacks = slices.Clone(cfg.LLM.Fallbacks)
	for i := range out.LLM.Fallbacks {
		out.LLM.Fallbacks[i].APIKey = mask(out.LLM.Fallbacks[i].APIKey)
	}
	return out
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	return redactedKey
}
