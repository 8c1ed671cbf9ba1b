package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lg/nuvision-api/internal/failure"
	"lg/nuvision-api/internal/vision"
)

// Handler holds shared dependencies for all route handlers.
type Handler struct {
	db        *pgxpool.Pool   // nil when no DB_URL is configured
	analyzer  vision.Analyzer // overridable for tests
	tokenHash []byte          // bcrypt hash of the API token; nil disables auth

	verifiedToken atomic.Pointer[[sha256.Size]byte] // digest of the last token that passed bcrypt
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
// Logs query and scan errors for debugging (e.g. struct/column mismatches).
func queryOne[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		log.Printf("[queryOne] Query error: %v", err)
		var zero T
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("[queryOne] Scan error: %v", err)
	}
	return result, err
}

/* ─── Error responses ─────────────────────────────────────────────────── */

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// apiFailure maps an engine failure to a status code and writes
// {"error": detail, "kind": kind}. Errors without a kind are logged and
// reported as a generic 500.
func apiFailure(c *gin.Context, err error) {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		log.Printf("[apiFailure] unclassified error: %v", err)
		apiError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(failureStatus(fe), failureResponse{Error: fe.Detail, Kind: fe.Kind})
}

func failureStatus(fe *failure.Error) int {
	switch fe.Kind {
	case failure.InvalidProfile:
		return http.StatusBadRequest
	case failure.MissingCredential:
		return http.StatusUnauthorized
	case failure.MalformedResponse:
		return http.StatusBadGateway
	case failure.ServiceError:
		if errors.Is(fe, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// limitBody caps the request body at n bytes. It writes 413 and returns false
// when the declared length is already over; bodies without a length are cut
// off by http.MaxBytesReader while being read.
func limitBody(c *gin.Context, n int64) bool {
	if c.Request.ContentLength > n {
		apiError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must be at most %d bytes", n))
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
	return true
}

// bodyTooLarge reports whether err came from reading past a limitBody cap.
func bodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// getDBPool creates a connection pool. We use a pool (not a single conn) because
// hosted Postgres providers close idle connections after a few minutes.
func getDBPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from server-side prepared statement caches after schema changes.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	fmt.Fprintln(os.Stderr, "DB pool ready!")
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Token-guarded routes (open when no API_TOKEN_HASH is configured)
	api := router.Group("/api", h.authMiddleware())
	api.POST("/targets", h.postTargets)
	api.POST("/analyze", h.analyzeMeal)
	api.POST("/reconcile", h.postReconcile)
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.putProfile)

	router.POST("/mcp", h.authMiddleware(), h.handleMCP)
}
