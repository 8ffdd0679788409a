package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
	"github.com/MikeSquared-Agency/Sadhana/internal/delivery"
	"github.com/MikeSquared-Agency/Sadhana/internal/embeddings"
	"github.com/MikeSquared-Agency/Sadhana/internal/recommend"
	"github.com/MikeSquared-Agency/Sadhana/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *catalog.Catalog {
	return catalog.Build([]store.Asana{
		{ID: "balasana", Asana: "Child's Pose", Age: "5", Gender: "all", HealthBenefits: []string{"back pain"}},
		{ID: "savasana", Asana: "Corpse Pose", Age: "All", Gender: "all", HealthBenefits: []string{"stress relief"}},
	})
}

type fakeRunner struct {
	gotAge    int
	gotGender string
	poses     []catalog.Pose
	err       error
}

func (f *fakeRunner) Run(_ context.Context, _ string, age int, gender string) (*recommend.Result, error) {
	f.gotAge, f.gotGender = age, gender
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Result{RequestID: "req-1", Poses: f.poses}, nil
}

type fakeReports struct{ err error }

func (f fakeReports) Generate(_ context.Context, _ []catalog.Pose) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3"), nil
}

type fakeChannel struct {
	sent []*delivery.Message
	err  error
}

func (f *fakeChannel) Send(_ context.Context, msg *delivery.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePublisher struct{ delivered []bool }

func (f *fakePublisher) ReportDelivered(_ context.Context, _ string, _ int, success bool) error {
	f.delivered = append(f.delivered, success)
	return nil
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := decode(t, w)["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func newSendHandler(runner Runner, reports ReportGenerator, ch delivery.Channel, pub DeliveryPublisher) *RecommendHandler {
	return NewRecommendHandler(runner, reports, ch, pub, "Your Recommended Yoga Asanas", discardLogger())
}

func TestPreview_ReturnsPoses(t *testing.T) {
	runner := &fakeRunner{poses: testCatalog().PosesFor("back pain")}
	h := newSendHandler(runner, fakeReports{}, nil, nil)

	w := postJSON(h.Preview, `{"health_issue":"back pain","age":"30","gender":"Female"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.gotAge != 30 || runner.gotGender != "Female" {
		t.Errorf("unexpected runner input age=%d gender=%q", runner.gotAge, runner.gotGender)
	}
	data, _ := decode(t, w)["data"].(map[string]any)
	poses, _ := data["poses"].([]any)
	if len(poses) != 1 {
		t.Fatalf("expected 1 pose, got %v", data["poses"])
	}
	if name := poses[0].(map[string]any)["asana"]; name != "Child's Pose" {
		t.Errorf("unexpected pose %v", name)
	}
}

func TestPreview_NumericAge(t *testing.T) {
	runner := &fakeRunner{}
	h := newSendHandler(runner, fakeReports{}, nil, nil)

	w := postJSON(h.Preview, `{"health_issue":"back pain","age":42,"gender":"male"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if runner.gotAge != 42 {
		t.Errorf("expected age 42, got %d", runner.gotAge)
	}
}

func TestPreview_Validation(t *testing.T) {
	h := newSendHandler(&fakeRunner{}, fakeReports{}, nil, nil)

	cases := []string{
		`{"age":"30","gender":"male"}`,
		`{"health_issue":"back pain","gender":"male"}`,
		`{"health_issue":"back pain","age":"abc","gender":"male"}`,
		`{"health_issue":"back pain","age":"-3","gender":"male"}`,
		`{"health_issue":"back pain","age":"thirty","gender":"male"}`,
		`{"health_issue":"back pain","age":30.5,"gender":"male"}`,
		`{"health_issue":"back pain","age":null,"gender":"male"}`,
		`{"health_issue":"back pain","age":true,"gender":"male"}`,
	}
	for _, body := range cases {
		w := postJSON(h.Preview, body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", body, w.Code)
		}
		if code := errorCode(t, w); code != "VALIDATION_ERROR" {
			t.Errorf("%s: expected VALIDATION_ERROR, got %q", body, code)
		}
	}

	w := postJSON(h.Preview, `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestPreview_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{embeddings.ErrModelUnavailable, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE"},
		{catalog.ErrCatalogUnavailable, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE"},
		{recommend.ErrInvalidInput, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		h := newSendHandler(&fakeRunner{err: tt.err}, fakeReports{}, nil, nil)
		w := postJSON(h.Preview, `{"health_issue":"back pain","age":"30","gender":"male"}`)
		if w.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, w.Code)
		}
		if code := errorCode(t, w); code != tt.code {
			t.Errorf("%v: expected code %s, got %s", tt.err, tt.code, code)
		}
	}
}

func TestSend_Success(t *testing.T) {
	ch := &fakeChannel{}
	pub := &fakePublisher{}
	h := newSendHandler(&fakeRunner{poses: testCatalog().Poses()}, fakeReports{}, ch, pub)

	w := postJSON(h.Send, `{"email":"user@example.com","health_issue":"stress","age":"30","gender":"female"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["message"] != MessageSent {
		t.Errorf("unexpected body %v", body)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(ch.sent))
	}
	msg := ch.sent[0]
	if msg.To != "user@example.com" || msg.Subject != "Your Recommended Yoga Asanas" {
		t.Errorf("unexpected message %+v", msg)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != delivery.ReportFilename {
		t.Errorf("expected report attachment, got %+v", msg.Attachments)
	}
	if len(pub.delivered) != 1 || !pub.delivered[0] {
		t.Errorf("expected successful delivery event, got %v", pub.delivered)
	}
}

func TestSend_FormBody(t *testing.T) {
	ch := &fakeChannel{}
	runner := &fakeRunner{poses: testCatalog().Poses()}
	h := newSendHandler(runner, fakeReports{}, ch, nil)

	form := url.Values{
		"email":        {"user@example.com"},
		"age":          {"25"},
		"gender":       {"Male"},
		"health_issue": {"back pain"},
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Send(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.gotAge != 25 || len(ch.sent) != 1 {
		t.Errorf("form body not used: age=%d sent=%d", runner.gotAge, len(ch.sent))
	}
}

func TestSend_NoMatch(t *testing.T) {
	ch := &fakeChannel{}
	h := newSendHandler(&fakeRunner{poses: []catalog.Pose{}}, fakeReports{}, ch, nil)

	w := postJSON(h.Send, `{"email":"user@example.com","health_issue":"quantum","age":"30","gender":"male"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false || body["message"] != MessageNoMatch {
		t.Errorf("unexpected body %v", body)
	}
	if len(ch.sent) != 0 {
		t.Error("no email should be sent without poses")
	}
}

func TestSend_DeliveryFailure(t *testing.T) {
	pub := &fakePublisher{}
	h := newSendHandler(&fakeRunner{poses: testCatalog().Poses()}, fakeReports{}, &fakeChannel{err: errors.New("smtp down")}, pub)

	w := postJSON(h.Send, `{"email":"user@example.com","health_issue":"back","age":"30","gender":"male"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if body := decode(t, w); body["message"] != MessageSendFail {
		t.Errorf("unexpected body %v", body)
	}
	if len(pub.delivered) != 1 || pub.delivered[0] {
		t.Errorf("expected failed delivery event, got %v", pub.delivered)
	}
}

func TestSend_ReportFailure(t *testing.T) {
	ch := &fakeChannel{}
	h := newSendHandler(&fakeRunner{poses: testCatalog().Poses()}, fakeReports{err: errors.New("render")}, ch, nil)

	w := postJSON(h.Send, `{"email":"user@example.com","health_issue":"back","age":"30","gender":"male"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if len(ch.sent) != 0 {
		t.Error("nothing should be sent when rendering fails")
	}
}

func TestSend_InvalidEmail(t *testing.T) {
	h := newSendHandler(&fakeRunner{}, fakeReports{}, &fakeChannel{}, nil)
	w := postJSON(h.Send, `{"email":"nope","health_issue":"back","age":"30","gender":"male"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "email") {
		t.Errorf("expected email in message, got %s", w.Body.String())
	}
}

func TestSend_NoChannel(t *testing.T) {
	h := newSendHandler(&fakeRunner{}, fakeReports{}, nil, nil)
	w := postJSON(h.Send, `{}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

type fakeQuotes struct {
	quotes []string
	err    error
}

func (f fakeQuotes) Random(_ context.Context, n int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.quotes) > n {
		return f.quotes[:n], nil
	}
	return f.quotes, nil
}

func getQuotes(t *testing.T, src QuoteSource, query string) (int, []any) {
	t.Helper()
	h := NewQuotesHandler(src, discardLogger())
	w := httptest.NewRecorder()
	h.Random(w, httptest.NewRequest(http.MethodGet, "/quotes"+query, nil))
	if w.Code != http.StatusOK {
		return w.Code, nil
	}
	data, _ := decode(t, w)["data"].(map[string]any)
	quotes, _ := data["quotes"].([]any)
	return w.Code, quotes
}

func TestQuotes(t *testing.T) {
	_, quotes := getQuotes(t, fakeQuotes{quotes: []string{"a", "b", "c", "d"}}, "")
	if len(quotes) != 3 {
		t.Errorf("expected 3 quotes by default, got %v", quotes)
	}

	_, quotes = getQuotes(t, fakeQuotes{}, "?count=2")
	if len(quotes) != 2 || quotes[0] != "No quotes available." {
		t.Errorf("expected placeholders, got %v", quotes)
	}

	_, quotes = getQuotes(t, fakeQuotes{err: errors.New("db down")}, "")
	if len(quotes) != 3 || quotes[0] != "Error loading quotes." {
		t.Errorf("expected error placeholders, got %v", quotes)
	}

	if code, _ := getQuotes(t, fakeQuotes{}, "?count=0"); code != http.StatusBadRequest {
		t.Errorf("expected 400 for count=0, got %d", code)
	}
}

type fakeHolder struct {
	cat *catalog.Catalog
	err error
}

func (f *fakeHolder) Current() *catalog.Catalog { return f.cat }

func (f *fakeHolder) Refresh(context.Context) (*catalog.Catalog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cat, nil
}

func TestBenefits(t *testing.T) {
	h := NewCatalogHandler(&fakeHolder{cat: testCatalog()}, discardLogger())
	w := httptest.NewRecorder()
	h.Benefits(w, httptest.NewRequest(http.MethodGet, "/benefits", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, _ := decode(t, w)["data"].(map[string]any)
	benefits, _ := data["benefits"].([]any)
	if len(benefits) != 2 || benefits[0] != "back pain" || benefits[1] != "stress relief" {
		t.Errorf("unexpected benefits %v", benefits)
	}

	empty := NewCatalogHandler(&fakeHolder{}, discardLogger())
	w = httptest.NewRecorder()
	empty.Benefits(w, httptest.NewRequest(http.MethodGet, "/benefits", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without catalog, got %d", w.Code)
	}
}

func TestCatalogRefresh(t *testing.T) {
	h := NewCatalogHandler(&fakeHolder{cat: testCatalog()}, discardLogger())
	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/admin/catalog/refresh", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	failing := NewCatalogHandler(&fakeHolder{err: catalog.ErrCatalogUnavailable}, discardLogger())
	w = httptest.NewRecorder()
	failing.Refresh(w, httptest.NewRequest(http.MethodPost, "/admin/catalog/refresh", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type ready bool

func (r ready) Ready() bool { return bool(r) }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, &fakeHolder{cat: testCatalog()}, ready(true), ready(false), nil)
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decode(t, w)
	if body["status"] != "healthy" || body["hermes"] != "disconnected" {
		t.Errorf("unexpected health %v", body)
	}

	h = NewHealthHandler(fakePinger{err: errors.New("down")}, &fakeHolder{cat: testCatalog()}, ready(true), ready(true), nil)
	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if body := decode(t, w); body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
}

func TestStats(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, &fakeHolder{cat: testCatalog()}, ready(true), ready(false), nil)
	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	body := decode(t, w)
	if body["catalog_poses"] != float64(2) || body["benefit_labels"] != float64(2) {
		t.Errorf("unexpected counts %v", body)
	}
	if body["model_ready"] != true || body["index_ready"] != false {
		t.Errorf("unexpected readiness %v", body)
	}
}

type fakeAuditor struct {
	entries []store.AuditEntry
	err     error
}

func (f *fakeAuditor) Log(_ context.Context, e store.AuditEntry) error {
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakeAuditor) Query(_ context.Context, action *store.AuditAction, limit int) ([]store.AuditEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []store.AuditEntry{}
	for _, e := range f.entries {
		if action == nil || e.Action == *action {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestSend_Audited(t *testing.T) {
	auditor := &fakeAuditor{}
	h := newSendHandler(&fakeRunner{poses: testCatalog().Poses()}, fakeReports{}, &fakeChannel{}, nil)
	h.SetAuditor(auditor)

	w := postJSON(h.Send, `{"email":"user@example.com","health_issue":"my back","age":"30","gender":"male"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(auditor.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(auditor.entries))
	}
	e := auditor.entries[0]
	if e.Action != store.ActionRecommendSend || !e.Success || e.RequestID == nil || *e.RequestID != "req-1" {
		t.Errorf("unexpected entry %+v", e)
	}
	for k, v := range e.Metadata {
		if s, ok := v.(string); ok && (strings.Contains(s, "@") || strings.Contains(s, "back")) {
			t.Errorf("audit metadata %s leaks user input: %q", k, s)
		}
	}
}

func TestAudit_WriteFailureIgnored(t *testing.T) {
	h := newSendHandler(&fakeRunner{poses: testCatalog().Poses()}, fakeReports{}, nil, nil)
	h.SetAuditor(&fakeAuditor{err: errors.New("db down")})

	w := postJSON(h.Preview, `{"health_issue":"back","age":"30","gender":"male"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("audit failure must not fail the request, got %d", w.Code)
	}
}

func TestAuditHandler_List(t *testing.T) {
	auditor := &fakeAuditor{entries: []store.AuditEntry{
		{Action: store.ActionRecommendPreview, Success: true},
		{Action: store.ActionCatalogRefresh, Success: true},
	}}
	h := NewAuditHandler(auditor)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/admin/audit?action=catalog.refresh", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, _ := decode(t, w)["data"].([]any)
	if len(data) != 1 {
		t.Errorf("expected 1 filtered entry, got %v", data)
	}

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/admin/audit?limit=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}
