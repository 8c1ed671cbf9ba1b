package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lg/nuvision-api/internal/failure"
)

// geminiReply wraps model text in the generateContent response shape
// (candidates[0].content.parts[0].text).
func geminiReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

// mockGemini serves the given status/body pairs in order, repeating the last
// one. It returns the server and a counter of requests received.
func mockGemini(t *testing.T, replies ...func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		if n > len(replies) {
			n = len(replies)
		}
		replies[n-1](w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func jsonReply(status int, body interface{}) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func testRequest(t *testing.T) Request {
	t.Helper()
	req, err := NewRequest(pngHeader, "image/png")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

const sampleMeal = `{"food_items":[{"name":"Toast","cooking_method":"Toasted","estimated_grams":40,"calories":110}],"total_calories":110,"health_score":6}`

func TestAnalyze_Success(t *testing.T) {
	var gotReq geminiRequest
	var gotKey, gotPath string
	srv, calls := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		jsonReply(http.StatusOK, geminiReply("```json\n"+sampleMeal+"\n```"))(w, r)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	meal, err := c.Analyze(context.Background(), "secret", testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meal.TotalCalories != 110 || len(meal.FoodItems) != 1 {
		t.Errorf("unexpected meal: %+v", meal)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("expected exactly one outbound call, got %d", n)
	}
	if gotKey != "secret" {
		t.Errorf("credential header = %q, want secret", gotKey)
	}
	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 2 {
		t.Fatalf("expected one content with two parts, got %+v", gotReq.Contents)
	}
	parts := gotReq.Contents[0].Parts
	if parts[0].Text != Instruction {
		t.Error("first part should be the fixed instruction")
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" ||
		parts[1].InlineData.Data != base64.StdEncoding.EncodeToString(pngHeader) {
		t.Errorf("second part should carry the image, got %+v", parts[1].InlineData)
	}
}

func TestAnalyze_MissingCredential(t *testing.T) {
	srv, calls := mockGemini(t, jsonReply(http.StatusOK, geminiReply(sampleMeal)))
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), "  ", testRequest(t))
	if !failure.Is(err, failure.MissingCredential) {
		t.Errorf("expected MissingCredential, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("no call should be made without a credential, got %d", n)
	}
}

func TestAnalyze_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   interface{}
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]interface{}{"error": map[string]interface{}{"code": 401, "message": "bad key"}}, "invalid credential"},
		{"invalid key 400", http.StatusBadRequest, map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": "API key not valid. Please pass a valid API key."}}, "invalid credential"},
		{"rate limited", http.StatusTooManyRequests, map[string]interface{}{"error": map[string]interface{}{"code": 429, "message": "quota"}}, "rate limited"},
		{"server error", http.StatusInternalServerError, map[string]string{"error": "boom"}, "status 500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := mockGemini(t, jsonReply(tc.status, tc.body))
			c := NewClient(Config{BaseURL: srv.URL})
			meal, err := c.Analyze(context.Background(), "key", testRequest(t))
			if meal != nil {
				t.Fatalf("expected no analysis, got %+v", meal)
			}
			if !failure.Is(err, failure.ServiceError) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err.Error(), tc.want)
			}
		})
	}
}

// TestAnalyze_RetriesOnceOn5xx verifies the retry is capped at two attempts.
func TestAnalyze_RetriesOnceOn5xx(t *testing.T) {
	srv, calls := mockGemini(t,
		jsonReply(http.StatusServiceUnavailable, map[string]string{"error": "overloaded"}),
		jsonReply(http.StatusOK, geminiReply(sampleMeal)),
	)
	c := NewClient(Config{BaseURL: srv.URL, MaxAttempts: 5})
	meal, err := c.Analyze(context.Background(), "key", testRequest(t))
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if meal.TotalCalories != 110 {
		t.Errorf("total = %v, want 110", meal.TotalCalories)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestAnalyze_GivesUpAfterCap(t *testing.T) {
	srv, calls := mockGemini(t, jsonReply(http.StatusBadGateway, map[string]string{"error": "down"}))
	c := NewClient(Config{BaseURL: srv.URL, MaxAttempts: 10})
	_, err := c.Analyze(context.Background(), "key", testRequest(t))
	if !failure.Is(err, failure.ServiceError) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Errorf("expected attempts capped at 2, got %d", n)
	}
}

func TestAnalyze_NoRetryOnAuthFailure(t *testing.T) {
	srv, calls := mockGemini(t, jsonReply(http.StatusForbidden, map[string]string{"error": "nope"}))
	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Analyze(context.Background(), "key", testRequest(t)); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("auth failures should not be retried, got %d calls", n)
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	srv, _ := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Analyze(context.Background(), "key", testRequest(t))
	if !failure.Is(err, failure.ServiceError) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected timeout cause to be preserved, got %v", err)
	}
}

func TestAnalyze_MalformedModelText(t *testing.T) {
	srv, calls := mockGemini(t, jsonReply(http.StatusOK, geminiReply("Sorry, I can't see any food here.")))
	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Analyze(context.Background(), "key", testRequest(t))
	if !failure.Is(err, failure.MalformedResponse) {
		t.Errorf("expected MalformedResponse, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("malformed output should not be retried, got %d calls", n)
	}
}

func TestAnalyze_BlockedPrompt(t *testing.T) {
	srv, _ := mockGemini(t, jsonReply(http.StatusOK, map[string]interface{}{
		"promptFeedback": map[string]string{"blockReason": "SAFETY"},
	}))
	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Analyze(context.Background(), "key", testRequest(t))
	if !failure.Is(err, failure.MalformedResponse) {
		t.Fatalf("expected MalformedResponse, got %v", err)
	}
	if !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("expected block reason in diagnostic, got %q", err.Error())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	if c.baseURL != DefaultBaseURL || c.model != DefaultModel ||
		c.timeout != DefaultTimeout || c.maxAttempts != DefaultMaxAttempts {
		t.Errorf("defaults not applied: %+v", c)
	}
}
