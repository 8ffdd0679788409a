package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/delivery"
	"github.com/MikeSquared-Agency/Sadhana/internal/metrics"
	"github.com/MikeSquared-Agency/Sadhana/internal/recommend"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

const maxBodyBytes = 64 << 10

// Response messages shown by the web form.
const (
	MessageSent     = "Recommendations sent successfully!"
	MessageNoMatch  = "No suitable yoga asanas found."
	MessageSendFail = "Error sending recommendations."
)

// Runner produces recommendations.
type Runner interface {
	Run(ctx context.Context, userInput string, age int, gender string) (*recommend.Result, error)
}

// ReportGenerator renders poses into a document.
type ReportGenerator interface {
	Generate(ctx context.Context, poses []catalog.Pose) ([]byte, error)
}

// DeliveryPublisher announces report deliveries.
type DeliveryPublisher interface {
	ReportDelivered(ctx context.Context, requestID string, poses int, success bool) error
}

// RecommendRequest is the body for a recommendation preview.
type RecommendRequest struct {
	HealthIssue string   `json:"health_issue" validate:"required,max=500"`
	Age         AgeValue `json:"age" validate:"required"`
	Gender      string   `json:"gender" validate:"required,max=32"`
}

// AgeValue holds the raw age from a JSON number or string. It is parsed by
// recommend.ParseAge so every malformed age gets the same validation error.
type AgeValue string

// UnmarshalJSON accepts any JSON value and keeps its text.
func (a *AgeValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AgeValue(s)
		return nil
	}
	*a = AgeValue(strings.TrimSpace(string(b)))
	return nil
}

// SendRequest is the body for an emailed recommendation.
type SendRequest struct {
	RecommendRequest
	Email string `json:"email" validate:"required,email"`
}

// RecommendHandler serves recommendation endpoints.
type RecommendHandler struct {
	runner    Runner
	reports   ReportGenerator
	channel   delivery.Channel
	publisher DeliveryPublisher
	auditor   Auditor
	subject   string
	logger    *slog.Logger
}

// NewRecommendHandler creates a new RecommendHandler. channel and publisher
// may be nil; without a channel the send endpoint answers 503.
func NewRecommendHandler(runner Runner, reports ReportGenerator, channel delivery.Channel, publisher DeliveryPublisher, subject string, logger *slog.Logger) *RecommendHandler {
	return &RecommendHandler{
		runner:    runner,
		reports:   reports,
		channel:   channel,
		publisher: publisher,
		subject:   subject,
		logger:    logger,
	}
}

// SetAuditor enables audit records for recommendation requests.
func (h *RecommendHandler) SetAuditor(a Auditor) {
	h.auditor = a
}

// Preview handles POST /recommendations/preview and returns poses inline.
func (h *RecommendHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, ok := h.run(w, r, &req)
	if !ok {
		return
	}

	audit(r.Context(), h.auditor, h.logger, r, store.ActionRecommendPreview, res.RequestID, true,
		map[string]any{"benefits": len(res.Benefits), "poses": len(res.Poses)})
	writeSuccess(w, http.StatusOK, res)
}

// Send handles POST /recommendations: recommend, render the report and email it.
func (h *RecommendHandler) Send(w http.ResponseWriter, r *http.Request) {
	if h.channel == nil {
		writeError(w, http.StatusServiceUnavailable, "DELIVERY_UNAVAILABLE", "Email delivery is not configured.")
		return
	}

	var req SendRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, ok := h.run(w, r, &req.RecommendRequest)
	if !ok {
		return
	}

	ctx := r.Context()
	if len(res.Poses) == 0 {
		audit(ctx, h.auditor, h.logger, r, store.ActionRecommendSend, res.RequestID, false,
			map[string]any{"outcome": "no_match"})
		writeJSON(w, http.StatusOK, outcome{Success: false, Message: MessageNoMatch, RequestID: res.RequestID})
		return
	}

	pdf, err := h.reports.Generate(ctx, res.Poses)
	if err != nil {
		h.logger.Error("generating report", "error", err, "request_id", res.RequestID)
		metrics.ReportDeliveries.WithLabelValues("render_failed").Inc()
		writeJSON(w, http.StatusInternalServerError, outcome{Success: false, Message: MessageSendFail, RequestID: res.RequestID})
		return
	}

	err = h.channel.Send(ctx, delivery.ReportMessage(req.Email, h.subject, pdf))
	h.announce(ctx, res, err == nil)
	audit(ctx, h.auditor, h.logger, r, store.ActionRecommendSend, res.RequestID, err == nil,
		map[string]any{"poses": len(res.Poses), "report_bytes": len(pdf)})
	if err != nil {
		if errors.Is(err, delivery.ErrInvalidRecipient) {
			metrics.ReportDeliveries.WithLabelValues("invalid_recipient").Inc()
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email must be a valid email address")
			return
		}
		h.logger.Error("sending report", "error", err, "request_id", res.RequestID)
		metrics.ReportDeliveries.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusBadGateway, outcome{Success: false, Message: MessageSendFail, RequestID: res.RequestID})
		return
	}

	metrics.ReportDeliveries.WithLabelValues("sent").Inc()
	writeJSON(w, http.StatusOK, outcome{
		Success:   true,
		Message:   MessageSent,
		RequestID: res.RequestID,
		Poses:     len(res.Poses),
	})
}

func (h *RecommendHandler) run(w http.ResponseWriter, r *http.Request, req *RecommendRequest) (*recommend.Result, bool) {
	age, err := recommend.ParseAge(string(req.Age))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}

	res, err := h.runner.Run(r.Context(), req.HealthIssue, age, req.Gender)
	if err != nil {
		if !errors.Is(err, recommend.ErrInvalidInput) {
			h.logger.Error("recommendation failed", "error", err)
		}
		writeDomainError(w, err)
		return nil, false
	}
	return res, true
}

func (h *RecommendHandler) announce(ctx context.Context, res *recommend.Result, success bool) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.ReportDelivered(ctx, res.RequestID, len(res.Poses), success); err != nil {
		h.logger.Warn("publish delivery event failed", "error", err)
	}
}

// decodeRequest reads a JSON or form body into dst and validates it.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid form body")
			return false
		}
		fillFromForm(r, dst)
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return false
		}
	}

	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationMessage(err))
		return false
	}
	return true
}

func fillFromForm(r *http.Request, dst any) {
	fill := func(req *RecommendRequest) {
		req.HealthIssue = r.FormValue("health_issue")
		req.Age = AgeValue(strings.TrimSpace(r.FormValue("age")))
		req.Gender = r.FormValue("gender")
	}
	switch v := dst.(type) {
	case *RecommendRequest:
		fill(v)
	case *SendRequest:
		fill(&v.RecommendRequest)
		v.Email = strings.TrimSpace(r.FormValue("email"))
	}
}
