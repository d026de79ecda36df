package effector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// HTTPLanguageModel is a LanguageModel backed by an HTTP completions
// endpoint. Credentials come from the process environment, never
// from the config artifact.
type HTTPLanguageModel struct {
	Endpoint   string
	APIKeyEnv  string
	Model      string
	HTTPClient *http.Client
	MaxRetries int
}

// NewHTTPLanguageModel returns an HTTPLanguageModel with sane retry
// defaults. endpoint and model identify the completions API; apiKeyEnv
// names the environment variable holding the credential.
func NewHTTPLanguageModel(endpoint, model, apiKeyEnv string) *HTTPLanguageModel {
	return &HTTPLanguageModel{
		Endpoint:   endpoint,
		APIKeyEnv:  apiKeyEnv,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		MaxRetries: 5,
	}
}

type completionRequest struct {
	Model    string   `json:"model"`
	Prompt   string   `json:"prompt"`
	FewShots []string `json:"few_shots,omitempty"`
}

type completionResponse struct {
	Content      string  `json:"content"`
	TokensUsed   int64   `json:"tokens_used"`
	DollarsSpent float64 `json:"dollars_spent,omitempty"`
}

// Generate calls the completions endpoint, retrying transient failures
// (network errors and 5xx responses) with bounded exponential backoff and
// jitter. It never supplies a max-output-tokens parameter.
func (m *HTTPLanguageModel) Generate(ctx context.Context, gen Generation) (GenerationResult, error) {
	apiKey := os.Getenv(m.APIKeyEnv)
	if apiKey == "" {
		return GenerationResult{}, fmt.Errorf("effector: %s is not set", m.APIKeyEnv)
	}

	body, err := json.Marshal(completionRequest{Model: m.Model, Prompt: gen.Prompt, FewShots: gen.FewShots})
	if err != nil {
		return GenerationResult{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= m.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return GenerationResult{}, err
			}
		}

		resp, err := m.doRequest(ctx, apiKey, body)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.transient {
			lastErr = fmt.Errorf("effector: transient response: %s", resp.status)
			continue
		}
		if resp.err != nil {
			return GenerationResult{}, resp.err
		}
		return GenerationResult{
			Patch:        resp.parsed.Content,
			TokensUsed:   resp.parsed.TokensUsed,
			DollarsSpent: resp.parsed.DollarsSpent,
		}, nil
	}
	return GenerationResult{}, fmt.Errorf("effector: exhausted %d retries: %w", m.MaxRetries, lastErr)
}

type requestOutcome struct {
	transient bool
	status    string
	parsed    completionResponse
	err       error
}

func (m *HTTPLanguageModel) doRequest(ctx context.Context, apiKey string, body []byte) (requestOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return requestOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return requestOutcome{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return requestOutcome{transient: true, status: resp.Status}, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return requestOutcome{}, err
	}
	if resp.StatusCode >= 400 {
		return requestOutcome{err: fmt.Errorf("effector: %s: %s", resp.Status, string(data))}, nil
	}

	var parsed completionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return requestOutcome{err: fmt.Errorf("effector: unparseable response: %w", err)}, nil
	}
	return requestOutcome{parsed: parsed}, nil
}

// sleepBackoff waits 2^attempt seconds, plus up to 250ms of jitter, capped
// at 30s, respecting ctx cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
