package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPAnalyzerPostsTranscript(t *testing.T) {
	var gotPath, gotKey string
	var gotBody analyzeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Result{
			Summary:  "Interested in 2BR",
			Tags:     []string{"hot-lead"},
			Priority: "high",
		})
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, "secret", 5*time.Second)
	result, err := a.Analyze(context.Background(), "conv-1", transcriptFixture())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotPath != "/v1/analyze" {
		t.Fatalf("expected POST /v1/analyze, got %s", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("expected X-API-Key header, got %q", gotKey)
	}
	if gotBody.ConversationID != "conv-1" || len(gotBody.Messages) != 2 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if result.Summary != "Interested in 2BR" || result.Priority != "high" || len(result.Tags) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHTTPAnalyzerNon200IsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, "", 5*time.Second)
	_, err := a.Analyze(context.Background(), "conv-1", transcriptFixture())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if !Retryable(err) {
		t.Fatal("expected 502 to be retryable")
	}
}

func TestHTTPAnalyzerTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, "", 20*time.Millisecond)
	_, err := a.Analyze(context.Background(), "conv-1", transcriptFixture())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !Retryable(err) {
		t.Fatal("expected timeout to be retryable")
	}
}
