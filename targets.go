package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/budget"
	"lg/nuvision-api/internal/failure"
)

// toProfile parses labels and checks that every field was supplied. Range
// checks happen in bio.Profile.Validate.
func (r profileRequest) toProfile() (bio.Profile, error) {
	var missing []string
	if r.Age == nil {
		missing = append(missing, "age")
	}
	if r.Gender == nil {
		missing = append(missing, "gender")
	}
	if r.WeightKG == nil {
		missing = append(missing, "weight_kg")
	}
	if r.HeightCM == nil {
		missing = append(missing, "height_cm")
	}
	if r.ActivityLevel == nil {
		missing = append(missing, "activity_level")
	}
	if r.Goal == nil {
		missing = append(missing, "goal")
	}
	if len(missing) > 0 {
		return bio.Profile{}, failure.New(failure.InvalidProfile, "missing profile fields: %s", strings.Join(missing, ", "))
	}

	gender, err := bio.ParseGender(*r.Gender)
	if err != nil {
		return bio.Profile{}, err
	}
	level, err := bio.ParseActivityLevel(*r.ActivityLevel)
	if err != nil {
		return bio.Profile{}, err
	}
	goal, err := bio.ParseGoal(*r.Goal)
	if err != nil {
		return bio.Profile{}, err
	}

	p := bio.Profile{
		Age:           *r.Age,
		Gender:        gender,
		WeightKG:      *r.WeightKG,
		HeightCM:      *r.HeightCM,
		ActivityLevel: level,
		Goal:          goal,
	}
	return p, p.Validate()
}

// empty reports whether no profile field was supplied at all.
func (r profileRequest) empty() bool {
	return r.Age == nil && r.Gender == nil && r.WeightKG == nil &&
		r.HeightCM == nil && r.ActivityLevel == nil && r.Goal == nil
}

// profileRequestFromForm reads profile fields from multipart/urlencoded form
// values. Fields that are absent stay nil; unparseable numbers are an
// InvalidProfile failure.
func profileRequestFromForm(c *gin.Context) (profileRequest, error) {
	var r profileRequest
	if s, ok := c.GetPostForm("age"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return r, failure.New(failure.InvalidProfile, "age must be an integer, got %q", s)
		}
		r.Age = &n
	}
	for _, f := range []struct {
		key string
		dst **float64
	}{
		{"weight_kg", &r.WeightKG},
		{"height_cm", &r.HeightCM},
	} {
		if s, ok := c.GetPostForm(f.key); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return r, failure.New(failure.InvalidProfile, "%s must be a number, got %q", f.key, s)
			}
			*f.dst = &v
		}
	}
	for _, f := range []struct {
		key string
		dst **string
	}{
		{"gender", &r.Gender},
		{"activity_level", &r.ActivityLevel},
		{"goal", &r.Goal},
	} {
		if s, ok := c.GetPostForm(f.key); ok {
			v := s
			*f.dst = &v
		}
	}
	return r, nil
}

// postTargets computes BMR, TDEE and the goal-adjusted target for a profile.
// POST /api/targets.
func (h *Handler) postTargets(c *gin.Context) {
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

	c.JSON(http.StatusOK, target)
}

// postReconcile reconciles a known target against a known meal total without
// re-running an analysis. POST /api/reconcile.
func (h *Handler) postReconcile(c *gin.Context) {
	var body reconcileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.TargetCalories == nil || body.TotalCalories == nil {
		apiError(c, http.StatusBadRequest, "target_calories and total_calories are required")
		return
	}
	if *body.TotalCalories < 0 {
		apiError(c, http.StatusBadRequest, "total_calories must not be negative")
		return
	}

	c.JSON(http.StatusOK, budget.Remaining(*body.TargetCalories, *body.TotalCalories))
}
