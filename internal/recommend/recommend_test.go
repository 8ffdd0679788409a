package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/similarity"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *catalog.Catalog {
	return catalog.Build([]store.Asana{
		{ID: "balasana", Asana: "Child's Pose", Age: "5", Gender: "all",
			HealthBenefits: []string{"back pain", "stress relief"}},
		{ID: "savasana", Asana: "Corpse Pose", Age: "All", Gender: "all",
			HealthBenefits: []string{"stress relief"}},
		{ID: "baddha", Asana: "Bound Angle", Age: "12", Gender: "female",
			HealthBenefits: []string{"menstrual relief", "back pain"}},
		{ID: "mayurasana", Asana: "Peacock Pose", Age: "18", Gender: "male",
			HealthBenefits: []string{"digestion"}},
	})
}

type staticCatalogs struct{ cat *catalog.Catalog }

func (s staticCatalogs) Current() *catalog.Catalog { return s.cat }

// fixedMatcher returns the neighbors configured for a query.
type fixedMatcher struct {
	results map[string][]similarity.Neighbor
	err     error
}

func (m *fixedMatcher) Neighbors(_ context.Context, _ similarity.Vocabulary, query string, _ float64) ([]similarity.Neighbor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

func (m *fixedMatcher) Threshold() float64 { return 0.6 }

type recordingPublisher struct {
	events []int
}

func (p *recordingPublisher) RecommendationGenerated(_ context.Context, _ string, _, poses int) error {
	p.events = append(p.events, poses)
	return nil
}

func neighbors(labels ...string) []similarity.Neighbor {
	out := make([]similarity.Neighbor, len(labels))
	for i, l := range labels {
		out[i] = similarity.Neighbor{Label: l, Distance: float64(i) * 0.1}
	}
	return out
}

func ids(poses []catalog.Pose) []string {
	out := make([]string, len(poses))
	for i, p := range poses {
		out[i] = p.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter_MatchedOrderThenCatalogOrder(t *testing.T) {
	got := ids(Filter(testCatalog(), []string{"stress relief", "back pain"}, 30, "female"))
	want := []string{"balasana", "savasana", "baddha"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFilter_NoDuplicates(t *testing.T) {
	got := Filter(testCatalog(), []string{"back pain", "stress relief", "back pain"}, 30, "female")
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.ID] {
			t.Fatalf("pose %s returned twice", p.ID)
		}
		seen[p.ID] = true
	}
	if len(got) != 3 {
		t.Errorf("expected 3 poses, got %d", len(got))
	}
}

func TestFilter_AgeBound(t *testing.T) {
	got := ids(Filter(testCatalog(), []string{"back pain"}, 4, "female"))
	if len(got) != 0 {
		t.Errorf("expected no poses for age 4, got %v", got)
	}

	got = ids(Filter(testCatalog(), []string{"back pain"}, 5, "male"))
	if !equal(got, []string{"balasana"}) {
		t.Errorf("expected [balasana] at minimum age, got %v", got)
	}
}

func TestFilter_AllAgeAdmitsEveryone(t *testing.T) {
	got := ids(Filter(testCatalog(), []string{"stress relief"}, 0, "male"))
	if !equal(got, []string{"savasana"}) {
		t.Errorf("expected [savasana], got %v", got)
	}
}

func TestFilter_GenderRule(t *testing.T) {
	got := ids(Filter(testCatalog(), []string{"digestion"}, 30, "female"))
	if len(got) != 0 {
		t.Errorf("male-only pose returned for female: %v", got)
	}
	got = ids(Filter(testCatalog(), []string{"digestion"}, 30, "male"))
	if !equal(got, []string{"mayurasana"}) {
		t.Errorf("expected [mayurasana], got %v", got)
	}
}

func TestFilter_EmptyMatchIsNonNil(t *testing.T) {
	got := Filter(testCatalog(), nil, 30, "male")
	if got == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("expected 0 poses, got %d", len(got))
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"30", 30, false},
		{" 7 ", 7, false},
		{"0", 0, false},
		{"150", 150, false},
		{"151", 0, true},
		{"-1", 0, true},
		{"thirty", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAge(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseAge(%q): expected ErrInvalidInput, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAge(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestRecommend_ChildsPoseForBackPain(t *testing.T) {
	m := &fixedMatcher{results: map[string][]similarity.Neighbor{
		"my back hurts": neighbors("back pain"),
	}}
	pub := &recordingPublisher{}
	r := New(staticCatalogs{testCatalog()}, m, pub, discardLogger())

	poses, err := r.Recommend(context.Background(), "  my back hurts ", "30", "Male")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(ids(poses), []string{"balasana"}) {
		t.Errorf("expected [balasana], got %v", ids(poses))
	}
	if len(pub.events) != 1 || pub.events[0] != 1 {
		t.Errorf("expected one event with 1 pose, got %v", pub.events)
	}
}

func TestRecommend_UnrelatedQueryReturnsEmpty(t *testing.T) {
	r := New(staticCatalogs{testCatalog()}, &fixedMatcher{}, nil, discardLogger())

	poses, err := r.Recommend(context.Background(), "quantum chromodynamics", "30", "female")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if poses == nil || len(poses) != 0 {
		t.Errorf("expected empty non-nil result, got %v", poses)
	}
}

func TestRecommend_InvalidInput(t *testing.T) {
	r := New(staticCatalogs{testCatalog()}, &fixedMatcher{}, nil, discardLogger())
	ctx := context.Background()

	cases := []struct{ query, age, gender string }{
		{"", "30", "male"},
		{"   ", "30", "male"},
		{"back pain", "abc", "male"},
		{"back pain", "200", "male"},
		{"back pain", "30", " "},
	}
	for _, c := range cases {
		if _, err := r.Recommend(ctx, c.query, c.age, c.gender); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Recommend(%q, %q, %q): expected ErrInvalidInput, got %v", c.query, c.age, c.gender, err)
		}
	}
}

func TestRecommend_ModelUnavailable(t *testing.T) {
	m := &fixedMatcher{err: embeddings.ErrModelUnavailable}
	r := New(staticCatalogs{testCatalog()}, m, nil, discardLogger())

	poses, err := r.Recommend(context.Background(), "back pain", "30", "male")
	if !errors.Is(err, embeddings.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if poses != nil {
		t.Errorf("expected no poses on failure, got %v", poses)
	}
}

func TestRecommend_NoCatalog(t *testing.T) {
	r := New(staticCatalogs{nil}, &fixedMatcher{}, nil, discardLogger())

	_, err := r.Recommend(context.Background(), "back pain", "30", "male")
	if !errors.Is(err, catalog.ErrCatalogUnavailable) {
		t.Errorf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestRun_ReturnsBenefitsAndRequestID(t *testing.T) {
	m := &fixedMatcher{results: map[string][]similarity.Neighbor{
		"anxiety": neighbors("stress relief"),
	}}
	r := New(staticCatalogs{testCatalog()}, m, nil, discardLogger())

	res, err := r.Run(context.Background(), "anxiety", 40, "female")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RequestID == "" {
		t.Error("expected request id")
	}
	if len(res.Benefits) != 1 || res.Benefits[0].Label != "stress relief" {
		t.Errorf("unexpected benefits: %v", res.Benefits)
	}
	if !equal(ids(res.Poses), []string{"balasana", "savasana"}) {
		t.Errorf("expected [balasana savasana], got %v", ids(res.Poses))
	}
}
