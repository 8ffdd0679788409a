package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/recommendations/preview" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req RecommendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Age != 30 || req.Gender != "female" {
			t.Errorf("unexpected body %+v", req)
		}
		w.Write([]byte(`{"data":{"request_id":"r1","benefits":[{"label":"back pain","distance":0.1}],"poses":[{"id":"balasana","asana":"Child's Pose"}]},"meta":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	rec, err := c.Recommend(context.Background(), RecommendRequest{HealthIssue: "back", Age: 30, Gender: "female"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Poses) != 1 || rec.Poses[0].Asana != "Child's Pose" {
		t.Errorf("unexpected poses %+v", rec.Poses)
	}
	if len(rec.Benefits) != 1 || rec.Benefits[0].Label != "back pain" {
		t.Errorf("unexpected benefits %+v", rec.Benefits)
	}
}

func TestQuotesAndBenefits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/quotes":
			if r.URL.Query().Get("count") != "2" {
				t.Errorf("expected count=2, got %q", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":{"quotes":["a","b"]}}`))
		case "/api/v1/benefits":
			w.Write([]byte(`{"data":{"benefits":["back pain"],"count":1}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	quotes, err := c.Quotes(context.Background(), 2)
	if err != nil || len(quotes) != 2 {
		t.Errorf("unexpected quotes %v, %v", quotes, err)
	}
	benefits, err := c.Benefits(context.Background())
	if err != nil || len(benefits) != 1 || benefits[0] != "back pain" {
		t.Errorf("unexpected benefits %v, %v", benefits, err)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			t.Error("expected api key header")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"MODEL_UNAVAILABLE","message":"try later"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithAPIKey("k")).Benefits(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Code != "MODEL_UNAVAILABLE" || apiErr.Message != "try later" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}
