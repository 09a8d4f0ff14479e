package collector

import (
	"fmt"

	"github.com/subpirate/analyzer/internal/config"
	"github.com/subpirate/analyzer/internal/domain"
)

// New selects the collector implementation from configuration.
func New(cfg config.CollectorSettings) (domain.Collector, error) {
	switch cfg.Mode {
	case "api":
		return NewAPIClient(cfg.ClientID, cfg.ClientSecret, cfg.Username, cfg.Password, cfg.UserAgent)
	case "public":
		if cfg.UserAgent == "" {
			return nil, fmt.Errorf("a user agent is required for public mode")
		}
		return NewPublicClient(cfg.UserAgent)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown collector mode: %s (use 'api', 'public', or 'mock')", cfg.Mode)
	}
}
