package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/budget"
	"lg/nuvision-api/internal/failure"
	"lg/nuvision-api/internal/vision"
)

// maxImageBytes caps the uploaded photo size (inline image payloads to the
// vision service are limited to ~20MB including the rest of the request).
const maxImageBytes = 15 << 20

// maxRequestBytes bounds a whole /api/analyze or /mcp body: the image,
// base64-expanded for /mcp, plus room for the other fields.
const maxRequestBytes = maxImageBytes*4/3 + 64<<10

// credentialHeader carries the vision service credential per request.
const credentialHeader = "X-Vision-Key"

/* ─── Handler ────────────────────────────────────────────────────────── */

// analyzeMeal handles POST /api/analyze.
// Accepts a multipart form with an "image" file, the profile fields (or none,
// to use the saved profile) and a vision credential; runs one analysis and
// reconciles it against the daily target.
func (h *Handler) analyzeMeal(c *gin.Context) {
	if !limitBody(c, maxRequestBytes) {
		return
	}
	fileHeader, err := c.FormFile("image")
	if bodyTooLarge(err) {
		apiError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must be at most %d bytes", maxRequestBytes))
		return
	}
	if err != nil {
		apiError(c, http.StatusBadRequest, "image is required")
		return
	}
	if fileHeader.Size > maxImageBytes {
		apiError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("image must be at most %d bytes", maxImageBytes))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable image")
		return
	}
	image, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	f.Close()
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable image")
		return
	}

	req, err := vision.NewRequest(image, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}

	form, err := profileRequestFromForm(c)
	if err != nil {
		apiFailure(c, err)
		return
	}
	p, err := h.resolveProfile(c.Request.Context(), form)
	if err != nil {
		apiFailure(c, err)
		return
	}

	credential := c.GetHeader(credentialHeader)
	if credential == "" {
		credential = c.PostForm("api_key")
	}

	resp, err := h.runAnalysis(c.Request.Context(), p, credential, req)
	if err != nil {
		apiFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// resolveProfile uses the submitted profile fields, or the saved profile when
// none were submitted and a store is configured.
func (h *Handler) resolveProfile(ctx context.Context, form profileRequest) (bio.Profile, error) {
	if !form.empty() || h.db == nil {
		return form.toProfile()
	}
	saved, err := queryOne[savedProfile](h.db, ctx, "SELECT * FROM profile WHERE id = 1", pgx.NamedArgs{})
	if errors.Is(err, pgx.ErrNoRows) {
		return bio.Profile{}, failure.New(failure.InvalidProfile, "no profile submitted and none saved")
	}
	if err != nil {
		return bio.Profile{}, fmt.Errorf("load saved profile: %w", err)
	}
	return saved.profile(), nil
}

// runAnalysis computes the target, performs exactly one analysis (the client
// may retry a transient failure once) and reconciles. Nothing is kept between
// calls.
func (h *Handler) runAnalysis(ctx context.Context, p bio.Profile, credential string, req vision.Request) (analyzeResponse, error) {
	analysisID := uuid.New().String()

	target, err := bio.ComputeTarget(p)
	if err != nil {
		return analyzeResponse{}, err
	}

	meal, err := h.analyzer.Analyze(ctx, credential, req)
	if err != nil {
		log.Printf("[analyze] %s failed (%s): %v", analysisID, failure.KindOf(err), err)
		return analyzeResponse{}, err
	}

	remaining, err := budget.Reconcile(target, meal)
	if err != nil {
		return analyzeResponse{}, err
	}
	log.Printf("[analyze] %s ok: %d items, %.0f kcal, remaining %.0f",
		analysisID, len(meal.FoodItems), meal.TotalCalories, remaining.RemainingKcal)

	return analyzeResponse{
		AnalysisID: analysisID,
		Target:     target,
		Meal:       meal,
		Budget:     remaining,
		Summary:    budgetSummary(remaining),
	}, nil
}

// budgetSummary is the display line for a reconciled budget. Values become
// whole kcal for display only: an overage rounds up so it never reads as 0,
// a remainder truncates.
func budgetSummary(b budget.RemainingBudget) string {
	if b.Exceeded {
		return fmt.Sprintf("You exceeded your daily limit by %d kcal.", int(math.Ceil(-b.RemainingKcal)))
	}
	return fmt.Sprintf("You have %d kcal remaining today.", int(b.RemainingKcal))
}

// mimeFromDataURL splits an optional "data:image/png;base64," prefix off a
// base64 image argument.
func mimeFromDataURL(s string) (mimeType, payload string) {
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "", s
	}
	header = strings.TrimPrefix(header, "data:")
	header = strings.TrimSuffix(header, ";base64")
	return header, payload
}
