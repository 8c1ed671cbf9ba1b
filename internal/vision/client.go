package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"lg/nuvision-api/internal/failure"
)

// Analyzer turns one image into a validated MealAnalysis. Implementations
// hold no state between calls; the credential travels with each request.
type Analyzer interface {
	Analyze(ctx context.Context, credential string, req Request) (*MealAnalysis, error)
}

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com"
	DefaultModel       = "gemini-3-flash-preview"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 2

	// maxAttemptsCap bounds retries regardless of configuration.
	maxAttemptsCap = 2
	// maxErrorBody caps how much of an upstream error body ends up in a diagnostic.
	maxErrorBody = 512
)

// Config configures a Client. Zero fields take the defaults above.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// Client calls the Gemini generateContent endpoint over plain net/http.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	timeout     time.Duration
	maxAttempts int
}

// NewClient applies defaults and caps MaxAttempts at two.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxAttempts > maxAttemptsCap {
		cfg.MaxAttempts = maxAttemptsCap
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
	}
}

/* ─── Gemini wire types ──────────────────────────────────────────────── */

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

/* ─── Analyze ────────────────────────────────────────────────────────── */

// Analyze sends req with credential and validates the reply. The whole call,
// retries included, is bounded by the configured timeout. Transport, auth and
// rate-limit problems come back as failure.ServiceError; a reply that does
// not match the schema comes back as failure.MalformedResponse.
func (c *Client) Analyze(ctx context.Context, credential string, req Request) (*MealAnalysis, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, failure.New(failure.MissingCredential, "no vision API credential supplied")
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: req.Instruction},
				{InlineData: &geminiInlineData{
					MIMEType: req.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.Image),
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var text string
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var retryable bool
		text, retryable, err = c.generate(ctx, credential, body)
		if err == nil {
			break
		}
		if !retryable || attempt == c.maxAttempts || ctx.Err() != nil {
			return nil, err
		}
		log.Printf("[vision] attempt %d failed, retrying: %v", attempt, err)
	}

	return ParseResponse(text)
}

// generate performs one HTTP round trip and returns the model text. The bool
// reports whether the failure is worth one more attempt; the request has no
// side effects on the service so repeating it is safe.
func (c *Client) generate(ctx context.Context, credential string, body []byte) (string, bool, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", false, failure.Wrap(failure.ServiceError, err, "vision request timed out")
		}
		if errors.Is(err, context.Canceled) {
			return "", false, failure.Wrap(failure.ServiceError, err, "vision request canceled")
		}
		return "", true, failure.Wrap(failure.ServiceError, err, "vision request failed")
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, failure.Wrap(failure.ServiceError, err, "read vision response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode >= 500, statusError(resp.StatusCode, respBytes)
	}

	var result geminiResponse
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", false, failure.Wrap(failure.MalformedResponse, err, "unmarshal vision envelope")
	}
	if len(result.Candidates) == 0 {
		if reason := result.PromptFeedback.BlockReason; reason != "" {
			return "", false, failure.New(failure.MalformedResponse, "no candidates in response (blocked: %s)", reason)
		}
		return "", false, failure.New(failure.MalformedResponse, "no candidates in response")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", false, failure.New(failure.MalformedResponse, "no text in response (finish reason: %s)", result.Candidates[0].FinishReason)
	}
	return sb.String(), false, nil
}

// statusError classifies a non-200 reply. The upstream message is included
// so the user can tell a bad key from a quota problem.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var ge geminiError
	if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
		msg = ge.Error.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		(status == http.StatusBadRequest && strings.Contains(msg, "API key")):
		return failure.New(failure.ServiceError, "invalid credential (status %d): %s", status, msg)
	case status == http.StatusTooManyRequests:
		return failure.New(failure.ServiceError, "rate limited (status %d): %s", status, msg)
	default:
		return failure.New(failure.ServiceError, "vision service returned status %d: %s", status, msg)
	}
}
