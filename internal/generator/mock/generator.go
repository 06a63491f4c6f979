package mock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// MockGenerator satisfies models.Generator for tests and local development.
type MockGenerator struct {
	Name_        string
	GenerateFunc func(ctx context.Context, prompt, model string) (models.GenerationResult, error)

	calls atomic.Int64
}

func (m *MockGenerator) Name() string { return m.Name_ }

func (m *MockGenerator) Generate(ctx context.Context, prompt, model string) (models.GenerationResult, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, model)
	}
	return models.GenerationResult{}, nil
}

// Calls returns how many times Generate has been invoked.
func (m *MockGenerator) Calls() int64 { return m.calls.Load() }

// NewMockGenerator returns a MockGenerator that immediately succeeds with resultURL.
func NewMockGenerator(resultURL string) *MockGenerator {
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _, _ string) (models.GenerationResult, error) {
			return models.GenerationResult{ResultURL: resultURL}, nil
		},
	}
}

// NewDelayedGenerator returns a MockGenerator that waits d, then succeeds with a
// URL derived from the model. It honours context cancellation while waiting.
func NewDelayedGenerator(d time.Duration) *MockGenerator {
	var seq atomic.Int64
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(ctx context.Context, _, model string) (models.GenerationResult, error) {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return models.GenerationResult{}, ctx.Err()
			case <-timer.C:
			}
			n := seq.Add(1)
			return models.GenerationResult{
				ResultURL: fmt.Sprintf("https://mock.invalid/%s/%d.png", model, n),
			}, nil
		},
	}
}

// NewFailingGenerator returns a MockGenerator that always returns the given error.
func NewFailingGenerator(err error) *MockGenerator {
	return &MockGenerator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _, _ string) (models.GenerationResult, error) {
			return models.GenerationResult{}, err
		},
	}
}

// NewBlockingGenerator returns a MockGenerator that blocks until context is cancelled.
func NewBlockingGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock-blocking",
		GenerateFunc: func(ctx context.Context, _, _ string) (models.GenerationResult, error) {
			<-ctx.Done()
			return models.GenerationResult{}, ctx.Err()
		},
	}
}

// Compile-time check that MockGenerator implements Generator.
var _ models.Generator = (*MockGenerator)(nil)
