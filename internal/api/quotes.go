package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultQuoteCount = 3
	maxQuoteCount     = 20
)

// QuoteSource samples random quotes.
type QuoteSource interface {
	Random(ctx context.Context, n int) ([]string, error)
}

// QuotesHandler serves the home page quotes.
type QuotesHandler struct {
	quotes QuoteSource
	logger *slog.Logger
}

// NewQuotesHandler creates a new QuotesHandler.
func NewQuotesHandler(quotes QuoteSource, logger *slog.Logger) *QuotesHandler {
	return &QuotesHandler{quotes: quotes, logger: logger}
}

// Random handles GET /quotes?count=N. It always answers with N strings,
// substituting placeholders when the collection is empty or unreachable.
func (h *QuotesHandler) Random(w http.ResponseWriter, r *http.Request) {
	n := defaultQuoteCount
	if v := r.URL.Query().Get("count"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxQuoteCount {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "count must be between 1 and 20")
			return
		}
		n = parsed
	}

	quotes, err := h.quotes.Random(r.Context(), n)
	switch {
	case err != nil:
		h.logger.Error("loading quotes", "error", err)
		quotes = repeat("Error loading quotes.", n)
	case len(quotes) == 0:
		quotes = repeat("No quotes available.", n)
	}

	writeSuccess(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
