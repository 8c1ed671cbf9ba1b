package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const targetsBody = `{"age":30,"gender":"male","weight_kg":80,"height_cm":180,"activity_level":"sedentary","goal":"maintain"}`

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	router := setupRouter(&Handler{tokenHash: hash})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong-token", http.StatusUnauthorized},
		{"right token", "Bearer right-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/targets", strings.NewReader(targetsBody))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAuth_GuardsMCP(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("right-token"), bcrypt.MinCost)
	router := setupRouter(&Handler{tokenHash: hash})

	w := doJSON(router, "POST", "/mcp", `{"name":"compute_daily_target","arguments":{}}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_OpenWithoutHash(t *testing.T) {
	router := setupRouter(&Handler{})

	w := doJSON(router, "POST", "/api/targets", targetsBody)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCheckToken_CachesVerifiedDigest(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("right-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := &Handler{tokenHash: hash}

	if h.verifiedToken.Load() != nil {
		t.Fatal("expected empty cache before any request")
	}
	if h.checkToken("wrong-token") {
		t.Fatal("wrong token accepted")
	}
	if h.verifiedToken.Load() != nil {
		t.Fatal("a rejected token must not be cached")
	}
	if !h.checkToken("right-token") {
		t.Fatal("right token rejected")
	}
	if h.verifiedToken.Load() == nil {
		t.Fatal("expected the verified digest to be cached")
	}

	// With the digest cached, the right token passes without bcrypt and a
	// wrong one still goes through bcrypt and fails.
	h.tokenHash = []byte("not a bcrypt hash")
	if !h.checkToken("right-token") {
		t.Error("cached token rejected")
	}
	if h.checkToken("wrong-token") {
		t.Error("wrong token accepted after caching")
	}
}
