package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/crypto"
	"github.com/Subho98799/nagar/internal/escalation"
	"github.com/Subho98799/nagar/internal/gate"
	"github.com/Subho98799/nagar/internal/middleware"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
	"github.com/Subho98799/nagar/internal/service"
)

type testAPI struct {
	router *gin.Engine
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	clk := clock.NewFixed(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryRepository()
	engines := service.NewEngines(repo, clk, escalation.DefaultConfig(), logger)
	reports := service.NewReportService(repo, gate.New(repo, clk, gate.DefaultConfig(), logger), engines, nil, clk, logger)
	reviewer := service.NewReviewerService(repo, engines, clk, logger)

	hasher, err := crypto.NewIdentityHasher("handler-test")
	if err != nil {
		t.Fatal(err)
	}
	auth, err := service.NewAuthService("handler-secret", time.Hour, clk, logger)
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := auth.IssueToken("rev-1")
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	RegisterRoutes(router,
		NewReportHandler(reports, hasher, logger),
		NewReviewerHandler(reviewer, logger),
		middleware.AuthMiddleware(auth, logger),
	)
	return &testAPI{router: router, token: token}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndFetchReport(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{
		Description: "Pothole near the school gate",
		IssueType:   "Infrastructure",
		Locality:    "Kothrud, Pune",
	}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	created := decode[models.Report](t, w)
	if created.City != "Pune" || created.Status != models.StatusUnderReview || created.ReporterIdentityHash == "" {
		t.Errorf("unexpected report: %+v", created)
	}

	w = api.do(t, http.MethodGet, "/api/reports/"+created.ID, nil, false)
	if w.Code != http.StatusOK || decode[models.Report](t, w).ID != created.ID {
		t.Errorf("get: status = %d body=%s", w.Code, w.Body)
	}

	w = api.do(t, http.MethodGet, "/api/reports?city=Pune&limit=5", nil, false)
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if w.Code != http.StatusOK || list.Count != 1 {
		t.Errorf("list: status = %d body=%s", w.Code, w.Body)
	}
}

func TestCreateReportErrors(t *testing.T) {
	api := newTestAPI(t)
	body := CreateReportRequest{Description: "Streetlight broken on main road", Locality: "Baner"}

	if w := api.do(t, http.MethodPost, "/api/reports", body, false); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", w.Code, w.Body)
	}

	w := api.do(t, http.MethodPost, "/api/reports", body, false)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d body=%s", w.Code, w.Body)
	}
	if dup := decode[map[string]any](t, w); dup["existing_id"] == "" || dup["existing_id"] == nil {
		t.Errorf("duplicate body lacks existing_id: %s", w.Body)
	}

	w = api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{Description: "bad"}, false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("validation: status = %d", w.Code)
	}

	for i := 0; i < 4; i++ {
		api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{
			Description: "Different problem " + string(rune('a'+i)) + " reported",
			Locality:    "Area " + string(rune('a'+i)),
		}, false)
	}
	w = api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{Description: "One too many reports"}, false)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "3600" {
		t.Errorf("rate limit: status = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}

	if w := api.do(t, http.MethodGet, "/api/reports/missing", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("missing report: status = %d", w.Code)
	}
	if w := api.do(t, http.MethodGet, "/api/reports?status=DONE", nil, false); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: status = %d", w.Code)
	}
}

func TestReviewerRoutes(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{
		Description: "Transformer sparking at night",
		IssueType:   "Public Safety",
		Locality:    "Aundh",
	}, false)
	id := decode[models.Report](t, w).ID

	if w := api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/status", map[string]string{"status": "VERIFIED"}, false); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d", w.Code)
	}

	w = api.do(t, http.MethodGet, "/api/reviewer/reports/"+id+"/transitions", nil, true)
	next := decode[struct {
		Current string   `json:"current_status"`
		Allowed []string `json:"allowed_transitions"`
	}](t, w)
	if w.Code != http.StatusOK || next.Current != "UNDER_REVIEW" || len(next.Allowed) != 1 || next.Allowed[0] != "VERIFIED" {
		t.Errorf("transitions: status = %d body=%s", w.Code, w.Body)
	}
	if w := api.do(t, http.MethodGet, "/api/reviewer/reports/missing/transitions", nil, true); w.Code != http.StatusNotFound {
		t.Errorf("transitions of missing report: status = %d", w.Code)
	}

	w = api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/status", map[string]string{"status": "CLOSED"}, true)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid transition: status = %d body=%s", w.Code, w.Body)
	}
	if allowed := decode[map[string]any](t, w)["allowed"].([]any); len(allowed) != 1 || allowed[0] != "VERIFIED" {
		t.Errorf("allowed = %v", allowed)
	}

	w = api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/status", map[string]string{"status": "verified", "note": "site visit"}, true)
	if w.Code != http.StatusOK {
		t.Fatalf("transition: status = %d body=%s", w.Code, w.Body)
	}
	moved := decode[models.Report](t, w)
	last := moved.StatusHistory[len(moved.StatusHistory)-1]
	if moved.Status != models.StatusVerified || last.Actor.String() != "rev-1" {
		t.Errorf("transition not recorded: %+v", last)
	}

	if w := api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/escalation", map[string]string{"reason": "x"}, true); w.Code != http.StatusBadRequest {
		t.Errorf("missing flag: status = %d", w.Code)
	}
	w = api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/escalation", map[string]any{"flag": false}, true)
	if w.Code != http.StatusOK || decode[models.Report](t, w).EscalationFlag {
		t.Errorf("dismiss: status = %d body=%s", w.Code, w.Body)
	}

	if w := api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/confidence", nil, true); w.Code != http.StatusOK {
		t.Errorf("upgrade: status = %d body=%s", w.Code, w.Body)
	}
	if w := api.do(t, http.MethodPost, "/api/reviewer/reports/"+id+"/recompute", nil, true); w.Code != http.StatusOK {
		t.Errorf("recompute: status = %d body=%s", w.Code, w.Body)
	}

	w = api.do(t, http.MethodGet, "/api/reviewer/escalations?limit=10", nil, true)
	candidates := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if w.Code != http.StatusOK || candidates.Count != 1 {
		t.Errorf("escalations: status = %d body=%s", w.Code, w.Body)
	}
}

func TestCityPulseRoute(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/api/reports", CreateReportRequest{
		Description: "Garbage dumped beside the lake",
		IssueType:   "Garbage",
		Locality:    "Kothrud, Pune",
	}, false)

	w := api.do(t, http.MethodGet, "/api/city-pulse?city=Pune", nil, false)
	pulse := decode[service.CityPulse](t, w)
	if w.Code != http.StatusOK || pulse.ReportCount != 1 || len(pulse.ActiveIssues) != 1 || pulse.ActiveIssues[0].Category != "Garbage" {
		t.Errorf("pulse: status = %d body=%s", w.Code, w.Body)
	}

	if w := api.do(t, http.MethodGet, "/api/city-pulse", nil, false); w.Code != http.StatusBadRequest {
		t.Errorf("missing city: status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(t, http.MethodGet, "/health", nil, false); w.Code != http.StatusOK {
		t.Errorf("health: status = %d", w.Code)
	}
}
