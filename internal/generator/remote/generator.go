// Package remote drives a generation sidecar over HTTP. The sidecar owns the
// interactive browser session; this client only submits work and reads back
// the result URL.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// Sentinel errors for generator failures.
var (
	ErrUnreachable      = errors.New("generator unreachable")
	ErrTimeout          = errors.New("generation timeout")
	ErrGenerationFailed = errors.New("generation failed")
	ErrInvalidResponse  = errors.New("generator returned invalid response")
)

const maxErrorBody = 4 << 10

// Generator implements models.Generator against the sidecar's HTTP API.
type Generator struct {
	baseURL string
	client  *http.Client
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient replaces the default client. The default has no timeout:
// a generation can run for minutes and is bounded by the caller's context.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.client = c }
}

// NewGenerator creates a new remote Generator.
func NewGenerator(baseURL string, opts ...Option) *Generator {
	g := &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Name() string { return "remote" }

func (g *Generator) Generate(ctx context.Context, prompt, model string) (models.GenerationResult, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Model: model})
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return models.GenerationResult{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GenerationResult{}, failureFromResponse(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if strings.TrimSpace(out.ResultURL) == "" {
		return models.GenerationResult{}, fmt.Errorf("%w: missing resultUrl", ErrInvalidResponse)
	}

	return models.GenerationResult{ResultURL: out.ResultURL}, nil
}

// Ready reports whether the sidecar answers its health check.
func (g *Generator) Ready(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: generator not ready (status %d)", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// failureFromResponse turns a non-200 reply into ErrGenerationFailed, keeping
// the sidecar's own message when it sent one.
func failureFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return fmt.Errorf("%w: %s", ErrGenerationFailed, body.Error)
	}
	return fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// --- sidecar wire types ---

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateResponse struct {
	ResultURL string `json:"resultUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Compile-time check that Generator implements models.Generator.
var _ models.Generator = (*Generator)(nil)
