package backend

import (
	"fmt"
	"net/http"

	"studylink/internal/config"
	"studylink/internal/studylink"
)

// NewBackendFromConfig creates a Backend implementation based on the backend config type.
// reportMembership only affects the memory backend.
func NewBackendFromConfig(cfg config.BackendConfig, reportMembership bool, logger studylink.Logger) (studylink.Backend, error) {
	switch cfg.Type {
	case "http", "":
		client := &http.Client{Timeout: cfg.Timeout()}
		b, err := NewHTTPBackend(cfg.BaseURL, cfg.ListMethod, client, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		m := NewMemoryBackend(reportMembership)
		if cfg.SeedDemo {
			m.SeedDemo()
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
