package wiring

import (
	"github.com/felixgeelhaar/stepwise/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/stepwise/pkg/ai"
	domainai "github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

// LoadAIProvider builds the configured provider, bounded by ai.timeout_sec
// when one is set.
func LoadAIProvider(cfg config.AIConfig) (domainai.Provider, error) {
	baseProvider, err := infraai.GetDefaultProvider(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}
	return infraai.WithDeadline(baseProvider, cfg.Timeout()), nil
}
