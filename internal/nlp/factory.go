package nlp

import (
	"fmt"

	"github.com/veridexhq/veridex/internal/config"
)

// New returns the configured provider, or nil when none is configured and
// the pipeline should rely on heuristics alone.
func New(cfg config.NLPConfig) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown nlp provider %q", cfg.Provider)
	}
}
