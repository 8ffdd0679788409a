package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newSidecar(t *testing.T, model string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if got := r.URL.Query().Get("model"); got != model {
				t.Errorf("expected model query %q, got %q", model, got)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model": model, "dimensions": Dimensions})
		case "/embed":
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				Model string   `json:"model"`
				Texts []string `json:"texts"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Model != model {
				t.Errorf("expected model %q, got %q", model, req.Model)
			}
			resp := struct {
				Embeddings [][]float32 `json:"embeddings"`
			}{Embeddings: make([][]float32, len(req.Texts))}
			for i := range req.Texts {
				vec := make([]float32, Dimensions)
				for j := range vec {
					vec[j] = float32(j+i) * 0.001
				}
				resp.Embeddings[i] = vec
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func TestLocalProvider_LoadAndEmbed(t *testing.T) {
	server := newSidecar(t, DefaultModel)
	defer server.Close()

	p := NewLocalProvider(server.URL, "")
	if p.Name() != "local" {
		t.Errorf("expected name 'local', got '%s'", p.Name())
	}
	if p.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", p.Model())
	}

	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if p.Dimensions() != Dimensions {
		t.Errorf("expected %d dimensions from health, got %d", Dimensions, p.Dimensions())
	}

	vecs, err := p.Embed(context.Background(), []string{"back pain", "insomnia", "digestion"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if vecs[1].Slice()[0] != 0.001 {
		t.Errorf("vectors should keep input order, got first component %f", vecs[1].Slice()[0])
	}
}

func TestLocalProvider_ModelMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model": "other/model"})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL, DefaultModel)
	if err := p.Load(context.Background()); err == nil {
		t.Fatal("expected error when the sidecar serves another model")
	}
}

func TestLocalProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL, "")
	if err := p.Load(context.Background()); err == nil {
		t.Fatal("expected load error for server error response")
	}
	if _, err := p.Embed(context.Background(), []string{"test"}); err == nil {
		t.Fatal("expected embed error for server error response")
	}
}

func TestLocalProvider_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{Embeddings: [][]float32{}})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL, "")
	if _, err := p.Embed(context.Background(), []string{"test"}); err == nil {
		t.Fatal("expected error for empty embeddings response")
	}
}
