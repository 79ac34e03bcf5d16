package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

type capturedRequest struct {
	auth string
	body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature    float64 `json:"temperature"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
}

func newLLMServer(t *testing.T, status int, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			captured.auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(content))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  DefaultModel,
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(baseURL string) *Client {
	return NewClient(Config{APIKey: "sk-test", BaseURL: baseURL, Client: http.DefaultClient})
}

func TestClassifyParsesKindAndKeywords(t *testing.T) {
	var captured capturedRequest
	srv := newLLMServer(t, http.StatusOK, `{"type":"specific_title","keywords":[" Halo ",""," Infinite"]}`, &captured)

	got, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "Halo Infinite")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Kind != domain.QueryKindSpecificTitle {
		t.Fatalf("kind = %q", got.Kind)
	}
	if strings.Join(got.Keywords, ",") != "halo,infinite" {
		t.Fatalf("keywords = %v", got.Keywords)
	}
	if captured.auth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", captured.auth)
	}
	if captured.body.Model != DefaultModel || captured.body.Temperature != 0.1 || captured.body.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected request: %+v", captured.body)
	}
	if len(captured.body.Messages) != 2 || captured.body.Messages[1].Content != "Halo Infinite" {
		t.Fatalf("unexpected messages: %+v", captured.body.Messages)
	}
}

func TestClassifyRejectsUnknownKind(t *testing.T) {
	srv := newLLMServer(t, http.StatusOK, `{"type":"vibes","keywords":[]}`, nil)
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "algo")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyRejectsNonJSONContent(t *testing.T) {
	srv := newLLMServer(t, http.StatusOK, `I think this is a shooter`, nil)
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "algo")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestMissingCredentialSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	if client.Enabled() {
		t.Fatal("client without key must be disabled")
	}
	if _, err := NewClassifier(client).Classify(context.Background(), "halo"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := NewRecommender(client).Recommend(context.Background(), "halo", nil); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", hits.Load())
	}
}

func TestNon2xxCarriesSnippet(t *testing.T) {
	srv := newLLMServer(t, http.StatusTooManyRequests, `{"error": {"message": "Rate limit   reached"}}`, nil)
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "halo")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 429") || !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAPIErrorObject(t *testing.T) {
	srv := newLLMServer(t, http.StatusNotFound, `{"error":{"message":"model not found","type":"invalid_request_error"}}`, nil)
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "halo")
	if err == nil || !strings.Contains(err.Error(), "model not found") || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNonJSONErrorBodyIsRequestError(t *testing.T) {
	srv := newLLMServer(t, http.StatusBadGateway, `<html>upstream down</html>`, nil)
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "halo")
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected request error, got %v", err)
	}
}

func TestNoChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-test","choices":[]}`))
	}))
	defer srv.Close()
	_, err := NewClassifier(testClient(srv.URL)).Classify(context.Background(), "halo")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRecommendSendsCandidatesAndKeepsOrder(t *testing.T) {
	var captured capturedRequest
	srv := newLLMServer(t, http.StatusOK, `{"titles":["Stardew Valley"," ","Imaginary Game","A Short Hike"]}`, &captured)

	candidates := []domain.Candidate{
		{Title: "Stardew Valley", Genres: "Simulación", Description: "Vida de granja", Features: domain.Unavailable},
		{Title: "A Short Hike", Genres: "Aventura", Description: domain.Unavailable},
	}
	titles, err := NewRecommender(testClient(srv.URL)).Recommend(context.Background(), "algo relajante", candidates)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if strings.Join(titles, "|") != "Stardew Valley|Imaginary Game|A Short Hike" {
		t.Fatalf("titles = %v", titles)
	}
	system := captured.body.Messages[0].Content
	if !strings.Contains(system, `"title":"Stardew Valley"`) || !strings.Contains(system, `"description":"Vida de granja"`) {
		t.Fatalf("candidates missing from prompt: %s", system)
	}
	if strings.Contains(system, domain.Unavailable) {
		t.Fatalf("sentinel values should not reach the prompt: %s", system)
	}
}

func TestRecommendMalformed(t *testing.T) {
	srv := newLLMServer(t, http.StatusOK, `{"titles":"Halo"}`, nil)
	_, err := NewRecommender(testClient(srv.URL)).Recommend(context.Background(), "halo", nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
