package budget

import (
	"errors"
	"testing"

	"lg/nuvision-api/internal/bio"
	"lg/nuvision-api/internal/vision"
)

func TestReconcile(t *testing.T) {
	cases := []struct {
		name          string
		target, meal  float64
		wantRemaining float64
		wantExceeded  bool
	}{
		{"over budget", 1508.5, 1800, -291.5, true},
		{"under budget", 2000, 650, 1350, false},
		{"exactly on budget", 1500, 1500, 0, false},
		{"empty meal", 1508.5, 0, 1508.5, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Reconcile(bio.DailyTarget{TargetCalories: tc.target}, &vision.MealAnalysis{TotalCalories: tc.meal})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.RemainingKcal != tc.wantRemaining {
				t.Errorf("remaining = %v, want %v", got.RemainingKcal, tc.wantRemaining)
			}
			if got.Exceeded != tc.wantExceeded {
				t.Errorf("exceeded = %v, want %v", got.Exceeded, tc.wantExceeded)
			}
		})
	}
}

// TestReconcile_NoAnalysis verifies a missing analysis is not treated as a
// zero-calorie meal.
func TestReconcile_NoAnalysis(t *testing.T) {
	got, err := Reconcile(bio.DailyTarget{TargetCalories: 2000}, nil)
	if !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("expected ErrNoAnalysis, got %v", err)
	}
	if got != (RemainingBudget{}) {
		t.Errorf("expected zero value alongside error, got %+v", got)
	}
}

// TestReconcile_EndToEnd runs the reference profile through the engine.
func TestReconcile_EndToEnd(t *testing.T) {
	target, err := bio.ComputeTarget(bio.Profile{
		Age: 25, Gender: bio.Male, WeightKG: 70, HeightCM: 175,
		ActivityLevel: bio.Sedentary, Goal: bio.LoseWeight,
	})
	if err != nil {
		t.Fatalf("ComputeTarget: %v", err)
	}
	meal, err := vision.ParseResponse(`{"food_items":[{"name":"Burger","cooking_method":"Grilled","estimated_grams":350,"calories":1800}],"total_calories":1800,"health_score":3}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	got, err := Reconcile(target, meal)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got.RemainingKcal > -291.49 || got.RemainingKcal < -291.51 || !got.Exceeded {
		t.Errorf("got %+v, want remaining≈-291.5 exceeded=true", got)
	}
}
