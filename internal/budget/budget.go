// Package budget reconciles a daily target against one analyzed meal.
package budget

import (
	"errors"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/vision"
)

// ErrNoAnalysis is returned when there is no validated meal to reconcile.
// Callers must surface the analysis failure itself instead.
var ErrNoAnalysis = errors.New("no validated meal analysis to reconcile")

// RemainingBudget is what is left of the day's target after the meal.
// RemainingKcal may be negative; it is never rounded here.
type RemainingBudget struct {
	RemainingKcal float64 `json:"remaining_kcal"`
	Exceeded      bool    `json:"exceeded"`
}

// Reconcile subtracts the meal total from the target calories.
func Reconcile(target bio.DailyTarget, meal *vision.MealAnalysis) (RemainingBudget, error) {
	if meal == nil {
		return RemainingBudget{}, ErrNoAnalysis
	}
	return Remaining(target.TargetCalories, meal.TotalCalories), nil
}

// Remaining is the arithmetic behind Reconcile, for callers that already
// hold both numbers.
func Remaining(targetCalories, mealCalories float64) RemainingBudget {
	remaining := targetCalories - mealCalories
	return RemainingBudget{RemainingKcal: remaining, Exceeded: remaining < 0}
}
