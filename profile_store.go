package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lg/nuvision-api/internal/bio"
)

// getProfile returns the saved profile inputs and the target derived from them.
// GET /api/profile. 503 when no store is configured, 404 when nothing is saved.
func (h *Handler) getProfile(c *gin.Context) {
	if h.db == nil {
		apiError(c, http.StatusServiceUnavailable, "profile store not configured")
		return
	}

	s, err := queryOne[savedProfile](h.db, c, "SELECT * FROM profile WHERE id = 1", pgx.NamedArgs{})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "profile not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch profile")
		}
		return
	}

	// A row edited by hand could hold values the engine rejects; report it
	// rather than computing from them.
	target, err := bio.ComputeTarget(s.profile())
	if err != nil {
		apiFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, savedProfileResponse{savedProfile: s, Target: target})
}

// putProfile validates and stores the profile inputs, replacing any previous
// ones. PUT /api/profile. Invalid profiles are rejected before the write so
// the store never holds a profile the engine would refuse.
func (h *Handler) putProfile(c *gin.Context) {
	if h.db == nil {
		apiError(c, http.StatusServiceUnavailable, "profile store not configured")
		return
	}

	var body profileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := body.toProfile()
	if err != nil {
		apiFailure(c, err)
		return
	}
	target, err := bio.ComputeTarget(p)
	if err != nil {
		apiFailure(c, err)
		return
	}

	s, err := queryOne[savedProfile](h.db, c,
		`INSERT INTO profile (id, age, gender, weight_kg, height_cm, activity_level, goal, updated_at)
		 VALUES (1, @age, @gender, @weightKG, @heightCM, @activityLevel, @goal, now())
		 ON CONFLICT (id) DO UPDATE SET
			age            = EXCLUDED.age,
			gender         = EXCLUDED.gender,
			weight_kg      = EXCLUDED.weight_kg,
			height_cm      = EXCLUDED.height_cm,
			activity_level = EXCLUDED.activity_level,
			goal           = EXCLUDED.goal,
			updated_at     = EXCLUDED.updated_at
		 RETURNING *`,
		pgx.NamedArgs{
			"age":           p.Age,
			"gender":        string(p.Gender),
			"weightKG":      p.WeightKG,
			"heightCM":      p.HeightCM,
			"activityLevel": string(p.ActivityLevel),
			"goal":          string(p.Goal),
		})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save profile")
		return
	}

	c.JSON(http.StatusOK, savedProfileResponse{savedProfile: s, Target: target})
}
