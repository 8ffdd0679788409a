// Package mcpclient provides an HTTP client for the Sadhana API,
// used by the MCP stdio server to forward tool calls.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is an HTTP client for the Sadhana API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key sent via X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client. baseURL should be like "http://localhost:8600".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// --- Request/Response types ---

// RecommendRequest is the input for a recommendation preview.
type RecommendRequest struct {
	HealthIssue string `json:"health_issue"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
}

// Pose is a recommended asana.
type Pose struct {
	ID                string   `json:"id"`
	Asana             string   `json:"asana"`
	Age               string   `json:"age"`
	Gender            string   `json:"gender"`
	HealthBenefits    []string `json:"health_benefits"`
	PoseDirection     []string `json:"pose_direction"`
	Contraindications []string `json:"contraindications"`
	ImageURL          string   `json:"image_url,omitempty"`
}

// MatchedBenefit is a benefit label close to the query.
type MatchedBenefit struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Recommendation is the preview result.
type Recommendation struct {
	RequestID string           `json:"request_id"`
	Benefits  []MatchedBenefit `json:"benefits"`
	Poses     []Pose           `json:"poses"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// apiEnvelope wraps Sadhana's standard response format.
type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// --- Methods ---

// Recommend previews recommendations without sending email.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	var result Recommendation
	if err := c.post(ctx, "/api/v1/recommendations/preview", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Benefits lists the benefit vocabulary.
func (c *Client) Benefits(ctx context.Context) ([]string, error) {
	var result struct {
		Benefits []string `json:"benefits"`
	}
	if err := c.get(ctx, "/api/v1/benefits", &result); err != nil {
		return nil, err
	}
	return result.Benefits, nil
}

// Quotes returns n random yoga quotes.
func (c *Client) Quotes(ctx context.Context, n int) ([]string, error) {
	q := url.Values{"count": {strconv.Itoa(n)}}
	var result struct {
		Quotes []string `json:"quotes"`
	}
	if err := c.get(ctx, "/api/v1/quotes?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Quotes, nil
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	decoded := json.Unmarshal(body, &envelope) == nil

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(body)}
		if decoded && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if decoded && envelope.Data != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
