// Package generator builds the Generator the scheduler drives.
package generator

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/genqueue/internal/config"
	"github.com/kiranshivaraju/genqueue/internal/generator/mock"
	"github.com/kiranshivaraju/genqueue/internal/generator/remote"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// devMockDelay makes GENERATOR=mock behave like a slow backend during local runs.
const devMockDelay = 2 * time.Second

// New constructs the appropriate Generator based on config.
// Called once at server startup.
func New(cfg config.GeneratorConfig) (models.Generator, error) {
	switch cfg.Kind {
	case config.GeneratorRemote:
		return remote.NewGenerator(cfg.BaseURL), nil
	case config.GeneratorMock:
		return mock.NewDelayedGenerator(devMockDelay), nil
	default:
		return nil, fmt.Errorf("unknown generator %q: must be one of remote, mock", cfg.Kind)
	}
}
