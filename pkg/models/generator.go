// Package models contains shared data models used across the genqueue codebase.
package models

import "context"

// Generator is the long-running external operation that turns a prompt into a result.
// Callers depend on this interface, never on a concrete generator.
type Generator interface {
	// Generate runs one generation. It may take minutes and may fail for any reason;
	// callers treat every error the same way.
	Generate(ctx context.Context, prompt, model string) (GenerationResult, error)
	// Name returns the generator identifier (e.g., "remote", "mock").
	Name() string
}

// GenerationResult is the successful output of a Generator call.
type GenerationResult struct {
	ResultURL string `json:"resultUrl"`
}
