package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/metrics"
	"github.com/MikeSquared-Agency/Sadhana/internal/similarity"
)

// CatalogSource hands out the current catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// BenefitMatcher maps a query onto benefit labels.
type BenefitMatcher interface {
	Neighbors(ctx context.Context, vocab similarity.Vocabulary, query string, threshold float64) ([]similarity.Neighbor, error)
	Threshold() float64
}

// Publisher announces finished recommendations. Only counts are published;
// the query and the user's details never leave the process.
type Publisher interface {
	RecommendationGenerated(ctx context.Context, requestID string, matchedBenefits, poses int) error
}

// Result is a recommendation plus the benefits that produced it.
type Result struct {
	RequestID string                `json:"request_id"`
	Benefits  []similarity.Neighbor `json:"benefits"`
	Poses     []catalog.Pose        `json:"poses"`
}

// Recommender is the single entry point combining matcher and filter.
type Recommender struct {
	catalogs  CatalogSource
	matcher   BenefitMatcher
	publisher Publisher
	logger    *slog.Logger
}

// New creates a Recommender. publisher may be nil.
func New(catalogs CatalogSource, matcher BenefitMatcher, publisher Publisher, logger *slog.Logger) *Recommender {
	return &Recommender{catalogs: catalogs, matcher: matcher, publisher: publisher, logger: logger}
}

// Recommend validates raw user input and returns the recommended poses.
func (r *Recommender) Recommend(ctx context.Context, userInput, age, gender string) ([]catalog.Pose, error) {
	parsed, err := ParseAge(age)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}
	res, err := r.Run(ctx, userInput, parsed, gender)
	if err != nil {
		return nil, err
	}
	return res.Poses, nil
}

// Run is Recommend with a numeric age, returning the matched benefits too.
// It is all-or-nothing: any failure returns no poses.
func (r *Recommender) Run(ctx context.Context, userInput string, age int, gender string) (*Result, error) {
	start := time.Now()
	defer func() { metrics.RecommendationDuration.Observe(time.Since(start).Seconds()) }()

	query := strings.TrimSpace(userInput)
	if query == "" {
		metrics.RecommendationsTotal.WithLabelValues("invalid_input").Inc()
		return nil, fmt.Errorf("%w: health concern is required", ErrInvalidInput)
	}
	if _, err := validateAge(age); err != nil {
		metrics.RecommendationsTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}
	g, err := NormalizeGender(gender)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	// One snapshot per request so a concurrent refresh cannot mix catalogs.
	cat := r.catalogs.Current()
	if cat == nil {
		metrics.RecommendationsTotal.WithLabelValues("error").Inc()
		return nil, catalog.ErrCatalogUnavailable
	}

	neighbors, err := r.matcher.Neighbors(ctx, cat, query, r.matcher.Threshold())
	if err != nil {
		outcome := "error"
		if errors.Is(err, embeddings.ErrModelUnavailable) {
			outcome = "model_unavailable"
		}
		metrics.RecommendationsTotal.WithLabelValues(outcome).Inc()
		return nil, fmt.Errorf("matching benefits: %w", err)
	}

	labels := make([]string, len(neighbors))
	for i, n := range neighbors {
		labels[i] = n.Label
	}
	poses := Filter(cat, labels, age, g)

	res := &Result{RequestID: uuid.New().String(), Benefits: neighbors, Poses: poses}

	outcome := "matched"
	if len(poses) == 0 {
		outcome = "no_match"
	}
	metrics.RecommendationsTotal.WithLabelValues(outcome).Inc()
	metrics.RecommendedPoses.Observe(float64(len(poses)))

	r.logger.Info("recommendation generated",
		"request_id", res.RequestID,
		"benefits", len(labels),
		"poses", len(poses),
		"duration", time.Since(start).String(),
	)

	if r.publisher != nil {
		if err := r.publisher.RecommendationGenerated(ctx, res.RequestID, len(labels), len(poses)); err != nil {
			r.logger.Warn("publish recommendation event failed", "error", err)
		}
	}
	return res, nil
}
