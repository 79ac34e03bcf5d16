package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

type fakeSearchService struct {
	lastRequest domain.SearchRequest
	callCount   int
	total       int64
	countErr    error
	response    *domain.SearchResponse
}

func (f *fakeSearchService) Search(_ context.Context, request domain.SearchRequest) domain.SearchResponse {
	f.callCount++
	f.lastRequest = request
	if f.response != nil {
		return *f.response
	}
	return domain.SearchResponse{
		Query:      request.Query,
		Mode:       request.Mode,
		Stage:      domain.SearchStageKeyword,
		Items:      []domain.GameRecord{{Title: request.Query + " result", Genres: "Shooter"}},
		TotalItems: 1,
	}
}

func (f *fakeSearchService) Count(context.Context) (int64, error) {
	return f.total, f.countErr
}

func newTestServer(service *fakeSearchService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(service, WithLogger(logger)).Handler()
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Error.Code
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&fakeSearchService{}), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	service := &fakeSearchService{}
	rec := get(t, newTestServer(service), "/search?q=halo&mode=keyword")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if service.lastRequest.Query != "halo" || service.lastRequest.Mode != domain.SearchModeKeyword {
		t.Fatalf("unexpected request: %+v", service.lastRequest)
	}

	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.TotalItems != 1 || response.Items[0].Title != "halo result" {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestSearchDefaultsToAssistantMode(t *testing.T) {
	service := &fakeSearchService{}
	get(t, newTestServer(service), "/search?q=algo+relajante")
	if service.lastRequest.Mode != domain.SearchModeAssistant {
		t.Fatalf("mode = %q", service.lastRequest.Mode)
	}
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing query", target: "/search"},
		{name: "blank query", target: "/search?q=%20%20"},
		{name: "too long", target: "/search?q=" + strings.Repeat("a", maxQueryLength+1)},
		{name: "unknown mode", target: "/search?q=halo&mode=fuzzy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeSearchService{}
			rec := get(t, newTestServer(service), tc.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != "invalid_request" {
				t.Fatalf("code = %q", code)
			}
			if service.callCount != 0 {
				t.Fatalf("search should not run, got %d calls", service.callCount)
			}
		})
	}
}

func TestSearchRejectsPost(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeSearchService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?q=halo", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCount(t *testing.T) {
	rec := get(t, newTestServer(&fakeSearchService{total: 42}), "/games/count")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["total"] != 42 {
		t.Fatalf("total = %d", payload["total"])
	}
}

func TestCountUnavailable(t *testing.T) {
	rec := get(t, newTestServer(&fakeSearchService{countErr: errors.New("disk gone")}), "/games/count")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "service_unavailable" {
		t.Fatalf("code = %q", code)
	}
}

func TestIndexWithoutQuery(t *testing.T) {
	service := &fakeSearchService{total: 321}
	rec := get(t, newTestServer(service), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "321") {
		t.Fatalf("total count missing from page")
	}
	if service.callCount != 0 {
		t.Fatalf("search ran without a query")
	}
}

func TestIndexRendersCards(t *testing.T) {
	long := strings.Repeat("á", 300)
	service := &fakeSearchService{
		total: 2,
		response: &domain.SearchResponse{
			Query: "halo",
			Items: []domain.GameRecord{
				{
					Title:       "Halo <Infinite>",
					URL:         "https://example.test/halo",
					Description: long,
					ImageURL:    domain.Unavailable,
					Genres:      "Shooter",
					Developer:   "343 Industries",
					Publisher:   "Xbox Game Studios",
					ReleaseDate: "8/12/2021",
				},
			},
			TotalItems: 1,
			Notices:    []string{"keyword search failed"},
		},
	}
	rec := get(t, newTestServer(service), "/?q=halo")
	body := rec.Body.String()

	if !strings.Contains(body, "Halo &lt;Infinite&gt;") {
		t.Fatalf("title should be escaped, body = %s", body)
	}
	if !strings.Contains(body, strings.Repeat("á", descriptionExcerptLength)+"...") {
		t.Fatalf("description should be cut to an excerpt")
	}
	if strings.Contains(body, strings.Repeat("á", descriptionExcerptLength+1)) {
		t.Fatalf("description exceeds excerpt length")
	}
	if strings.Contains(body, "<img") {
		t.Fatalf("unavailable image should not render")
	}
	for _, want := range []string{"343 Industries", "Xbox Game Studios", "8/12/2021", "keyword search failed", "https://example.test/halo"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestIndexInvalidQueryShowsProblem(t *testing.T) {
	service := &fakeSearchService{}
	rec := get(t, newTestServer(service), "/?q=%20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.ErrInvalidQuery.Error()) {
		t.Fatalf("expected validation message on page")
	}
	if service.callCount != 0 {
		t.Fatalf("search should not run")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	rec := get(t, newTestServer(&fakeSearchService{}), "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := recoveryMiddleware(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := rateLimitMiddleware(1, 1, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/search", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/search", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health should bypass limiter, got %d", health.Code)
	}
}

func TestNormalizeRoute(t *testing.T) {
	for path, want := range map[string]string{
		"/search":      "/search",
		"/games/count": "/games/count",
		"/":            "/",
		"/wp-admin":    "/other",
	} {
		if got := normalizeRoute(path); got != want {
			t.Fatalf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
}
