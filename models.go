package main

import (
	"time"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/budget"
	"lg/nuvision-api/internal/failure"
	"lg/nuvision-api/internal/vision"
)

/* ─── Request types ──────────────────────────────────────────────────── */

// profileRequest is the profile body for POST /api/targets and PUT /api/profile.
// All fields are pointers so a missing field can be reported by name instead
// of being read as zero. Labels accept both canonical keys ("sedentary",
// "lose_weight") and the long-form UI labels ("Sedentary (Office job)").
type profileRequest struct {
	Age           *int     `json:"age"`
	Gender        *string  `json:"gender"`
	WeightKG      *float64 `json:"weight_kg"`
	HeightCM      *float64 `json:"height_cm"`
	ActivityLevel *string  `json:"activity_level"`
	Goal          *string  `json:"goal"`
}

// reconcileRequest is the request body for POST /api/reconcile.
type reconcileRequest struct {
	TargetCalories *float64 `json:"target_calories"`
	TotalCalories  *float64 `json:"total_calories"`
}

/* ─── Response types ─────────────────────────────────────────────────── */

// analyzeResponse is returned by POST /api/analyze and the analyze_meal tool.
// Budget is only present when the meal passed validation.
type analyzeResponse struct {
	AnalysisID string                 `json:"analysis_id"`
	Target     bio.DailyTarget        `json:"target"`
	Meal       *vision.MealAnalysis   `json:"meal"`
	Budget     budget.RemainingBudget `json:"budget"`
	Summary    string                 `json:"summary"`
}

// failureResponse is the error body for domain failures. It extends the
// plain {"error": "..."} shape with the failure kind.
type failureResponse struct {
	Error string       `json:"error"`
	Kind  failure.Kind `json:"kind"`
}

/* ─── Stored types ───────────────────────────────────────────────────── */

// savedProfile maps to the single-row profile table. Only the inputs are
// stored; targets are recomputed on every read.
type savedProfile struct {
	ID            int        `json:"-"              db:"id"`
	Age           int        `json:"age"            db:"age"`
	Gender        string     `json:"gender"         db:"gender"`
	WeightKG      float64    `json:"weight_kg"      db:"weight_kg"`
	HeightCM      float64    `json:"height_cm"      db:"height_cm"`
	ActivityLevel string     `json:"activity_level" db:"activity_level"`
	Goal          string     `json:"goal"           db:"goal"`
	UpdatedAt     *time.Time `json:"updated_at"     db:"updated_at"`
}

// savedProfileResponse is the GET/PUT /api/profile response: the stored
// inputs plus the target derived from them.
type savedProfileResponse struct {
	savedProfile
	Target bio.DailyTarget `json:"target"`
}

func (s savedProfile) profile() bio.Profile {
	return bio.Profile{
		Age:           s.Age,
		Gender:        bio.Gender(s.Gender),
		WeightKG:      s.WeightKG,
		HeightCM:      s.HeightCM,
		ActivityLevel: bio.ActivityLevel(s.ActivityLevel),
		Goal:          bio.Goal(s.Goal),
	}
}
