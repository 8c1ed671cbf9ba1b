// Package bio converts a body profile into a daily calorie target using the
// Mifflin-St Jeor equation. Everything here is pure: no I/O, no state, safe
// to call on every refresh.
package bio

import (
	"strings"

	"lg/nuvision-api/internal/failure"
)

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

type ActivityLevel string

const (
	Sedentary        ActivityLevel = "sedentary"
	LightlyActive    ActivityLevel = "light"
	ModeratelyActive ActivityLevel = "moderate"
	VeryActive       ActivityLevel = "active"
)

type Goal string

const (
	LoseWeight Goal = "lose_weight"
	Maintain   Goal = "maintain"
	GainWeight Goal = "gain_weight"
)

// GoalDeltaKcal is the daily surplus or deficit applied for a gain or lose goal.
const GoalDeltaKcal = 500

// activityMultipliers maps activity levels to their TDEE multiplier.
// This is the single source of truth for valid activity levels.
var activityMultipliers = map[ActivityLevel]float64{
	Sedentary:        1.2,
	LightlyActive:    1.375,
	ModeratelyActive: 1.55,
	VeryActive:       1.725,
}

// ActivityLevels lists the accepted levels in increasing order of activity.
var ActivityLevels = []ActivityLevel{Sedentary, LightlyActive, ModeratelyActive, VeryActive}

// Input bounds, inclusive.
const (
	MinAge, MaxAge           = 18, 100
	MinWeightKG, MaxWeightKG = 40.0, 200.0
	MinHeightCM, MaxHeightCM = 100.0, 250.0
)

// Profile is built fresh from the current inputs for every calculation.
type Profile struct {
	Age           int           `json:"age"`
	Gender        Gender        `json:"gender"`
	WeightKG      float64       `json:"weight_kg"`
	HeightCM      float64       `json:"height_cm"`
	ActivityLevel ActivityLevel `json:"activity_level"`
	Goal          Goal          `json:"goal"`
}

// DailyTarget is fully determined by a Profile. All values are kcal/day and
// are never rounded here.
type DailyTarget struct {
	BMR            float64 `json:"bmr"`
	TDEE           float64 `json:"tdee"`
	TargetCalories float64 `json:"target_calories"`
}

// Validate checks enum membership and the input bounds. Errors carry
// failure.InvalidProfile.
func (p Profile) Validate() error {
	if p.Gender != Male && p.Gender != Female {
		return failure.New(failure.InvalidProfile, "unrecognized gender %q", p.Gender)
	}
	if _, ok := activityMultipliers[p.ActivityLevel]; !ok {
		return failure.New(failure.InvalidProfile, "unrecognized activity level %q", p.ActivityLevel)
	}
	switch p.Goal {
	case LoseWeight, Maintain, GainWeight:
	default:
		return failure.New(failure.InvalidProfile, "unrecognized goal %q", p.Goal)
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return failure.New(failure.InvalidProfile, "age must be between %d and %d, got %d", MinAge, MaxAge, p.Age)
	}
	if !(p.WeightKG >= MinWeightKG && p.WeightKG <= MaxWeightKG) { // also rejects NaN
		return failure.New(failure.InvalidProfile, "weight_kg must be between %.0f and %.0f, got %g", MinWeightKG, MaxWeightKG, p.WeightKG)
	}
	if !(p.HeightCM >= MinHeightCM && p.HeightCM <= MaxHeightCM) {
		return failure.New(failure.InvalidProfile, "height_cm must be between %.0f and %.0f, got %g", MinHeightCM, MaxHeightCM, p.HeightCM)
	}
	return nil
}

// ComputeBMR returns the Mifflin-St Jeor basal metabolic rate. An unknown
// gender is an error rather than a fallback to either constant.
func ComputeBMR(p Profile) (float64, error) {
	bmr := 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(p.Age)
	switch p.Gender {
	case Male:
		return bmr + 5, nil
	case Female:
		return bmr - 161, nil
	default:
		return 0, failure.New(failure.InvalidProfile, "unrecognized gender %q", p.Gender)
	}
}

// ActivityMultiplier returns the TDEE multiplier for level.
func ActivityMultiplier(level ActivityLevel) (float64, error) {
	mult, found := activityMultipliers[level]
	if !found {
		return 0, failure.New(failure.InvalidProfile, "unrecognized activity level %q", level)
	}
	return mult, nil
}

// ComputeTDEE scales BMR by the activity multiplier.
func ComputeTDEE(p Profile) (float64, error) {
	bmr, err := ComputeBMR(p)
	if err != nil {
		return 0, err
	}
	mult, err := ActivityMultiplier(p.ActivityLevel)
	if err != nil {
		return 0, err
	}
	return bmr * mult, nil
}

// ComputeDailyTarget applies the goal adjustment to TDEE.
func ComputeDailyTarget(p Profile) (float64, error) {
	tdee, err := ComputeTDEE(p)
	if err != nil {
		return 0, err
	}
	return applyGoal(tdee, p.Goal)
}

func applyGoal(tdee float64, goal Goal) (float64, error) {
	switch goal {
	case LoseWeight:
		return tdee - GoalDeltaKcal, nil
	case GainWeight:
		return tdee + GoalDeltaKcal, nil
	case Maintain:
		return tdee, nil
	default:
		return 0, failure.New(failure.InvalidProfile, "unrecognized goal %q", goal)
	}
}

// ComputeTarget validates p and returns BMR, TDEE and the goal-adjusted
// target in one value.
func ComputeTarget(p Profile) (DailyTarget, error) {
	if err := p.Validate(); err != nil {
		return DailyTarget{}, err
	}
	bmr, err := ComputeBMR(p)
	if err != nil {
		return DailyTarget{}, err
	}
	mult, err := ActivityMultiplier(p.ActivityLevel)
	if err != nil {
		return DailyTarget{}, err
	}
	tdee := bmr * mult
	target, err := applyGoal(tdee, p.Goal)
	if err != nil {
		return DailyTarget{}, err
	}
	return DailyTarget{BMR: bmr, TDEE: tdee, TargetCalories: target}, nil
}

/* ─── Label parsing ──────────────────────────────────────────────────── */

// normalizeLabel lowercases s and collapses separators so "Lose Weight",
// "lose_weight" and "LoseWeight" compare equal.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return r.Replace(s)
}

// ParseGender accepts "male"/"female" in any case.
func ParseGender(s string) (Gender, error) {
	switch normalizeLabel(s) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	}
	return "", failure.New(failure.InvalidProfile, "unrecognized gender %q", s)
}

// activityLabels also covers the long-form labels shown by the web
// sidebar, e.g. "Sedentary (Office job)".
var activityLabels = map[string]ActivityLevel{
	"sedentary":                     Sedentary,
	"sedentary(officejob)":          Sedentary,
	"light":                         LightlyActive,
	"lightlyactive":                 LightlyActive,
	"lightlyactive(13days/week)":    LightlyActive,
	"moderate":                      ModeratelyActive,
	"moderatelyactive":              ModeratelyActive,
	"moderatelyactive(35days/week)": ModeratelyActive,
	"active":                        VeryActive,
	"veryactive":                    VeryActive,
	"veryactive(67days/week)":       VeryActive,
}

// ParseActivityLevel maps a label to an ActivityLevel. Unknown labels are
// rejected; there is no default level.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	if level, ok := activityLabels[normalizeLabel(s)]; ok {
		return level, nil
	}
	return "", failure.New(failure.InvalidProfile, "unrecognized activity level %q", s)
}

// ParseGoal accepts "lose_weight", "Lose Weight", "maintain", "Maintain Weight",
// "gain_weight" and "Gain Weight".
func ParseGoal(s string) (Goal, error) {
	switch normalizeLabel(s) {
	case "loseweight", "lose":
		return LoseWeight, nil
	case "maintain", "maintainweight":
		return Maintain, nil
	case "gainweight", "gain":
		return GainWeight, nil
	}
	return "", failure.New(failure.InvalidProfile, "unrecognized goal %q", s)
}
