package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// authMiddleware validates the Bearer token against the configured bcrypt
// hash. With no hash configured every request passes; the service is meant
// for a single user and accounts are out of scope.
//
// The SHA-256 digest of the last token that passed bcrypt is kept so repeat
// requests with the same token skip the bcrypt cost.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(h.tokenHash) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		if !h.checkToken(token) {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Next()
	}
}

// checkToken reports whether token matches tokenHash, consulting the cached
// digest first.
func (h *Handler) checkToken(token string) bool {
	digest := sha256.Sum256([]byte(token))
	if last := h.verifiedToken.Load(); last != nil && subtle.ConstantTimeCompare(last[:], digest[:]) == 1 {
		return true
	}
	if err := bcrypt.CompareHashAndPassword(h.tokenHash, []byte(token)); err != nil {
		return false
	}
	h.verifiedToken.Store(&digest)
	return true
}
