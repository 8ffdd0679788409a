package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	pgvector "github.com/pgvector/pgvector-go"
)

// LocalProvider generates embeddings by calling the sentence-transformers sidecar.
type LocalProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewLocalProvider creates a new local embedding provider.
// baseURL should be the sidecar root, e.g. "http://localhost:8601".
func NewLocalProvider(baseURL, model string) *LocalProvider {
	if model == "" {
		model = DefaultModel
	}
	return &LocalProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// Name returns the provider name.
func (p *LocalProvider) Name() string {
	return "local"
}

// Model returns the model identifier served by the sidecar.
func (p *LocalProvider) Model() string {
	return p.model
}

// Dimensions returns the vector size reported by the sidecar, or 0 before Load.
func (p *LocalProvider) Dimensions() int {
	return p.dimensions
}

type sidecarHealth struct {
	Status     string `json:"status"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

type sidecarRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts"`
}

type sidecarResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Load asks the sidecar to have the model ready. The sidecar fetches the model
// from Hugging Face on first request, so this is where the load cost is paid.
func (p *LocalProvider) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health?model="+url.QueryEscape(p.model), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, string(respBody))
	}

	var health sidecarHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("parsing health response: %w", err)
	}
	if health.Model != "" && health.Model != p.model {
		return fmt.Errorf("sidecar serves model %q, want %q", health.Model, p.model)
	}
	p.dimensions = health.Dimensions
	return nil
}

// Embed generates embeddings for all texts in one sidecar call.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return []pgvector.Vector{}, nil
	}

	body, err := json.Marshal(sidecarRequest{Model: p.model, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result sidecarResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("sidecar returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([]pgvector.Vector, len(result.Embeddings))
	for i, e := range result.Embeddings {
		out[i] = pgvector.NewVector(e)
	}
	return out, nil
}
