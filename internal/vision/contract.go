// Package vision owns the contract with the external image-classification
// service: the fixed instruction sent with each image, and the validation
// boundary that turns the model's free-form text into a MealAnalysis.
//
// Nothing the model returns reaches callers unless it passes ParseResponse.
package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"lg/nuvision-api/internal/failure"
)

/* ─── Instruction ────────────────────────────────────────────────────── */

// Instruction is sent verbatim with every image. It is part of the contract:
// changing the schema here means changing ParseResponse too.
const Instruction = `You are a nutritional computer vision engine.
Analyze this image assuming the food is on a standard 10-inch dinner plate.

Perform these steps:
1. CLASSIFY: Identify every distinct food item.
2. CONTEXT: Infer the cooking method of each item from its visual texture and sheen (e.g., Deep Fried = high density, Steamed = low density).
3. CALCULATE: Estimate the mass in grams of each item from its visual volume relative to the 10-inch reference plate.
4. SUMMARIZE: Compute the calories of each item from its mass and type, and the total calories of the meal.

Return ONLY the JSON object below. No surrounding prose, no markdown, no code fences.
{
    "food_items": [
        {"name": "Food Name", "cooking_method": "Method", "estimated_grams": 0, "calories": 0}
    ],
    "total_calories": 0,
    "health_score": 0
}
health_score is a number from 0 (least healthy) to 10 (most healthy).`

/* ─── Request ────────────────────────────────────────────────────────── */

var (
	ErrEmptyImage = errors.New("image payload is empty")
	ErrNotImage   = errors.New("payload is not an image")
)

// Request pairs the fixed instruction with exactly one image.
type Request struct {
	Instruction string
	Image       []byte
	MIMEType    string
}

// NewRequest builds the outbound request. When mimeType is empty it is
// sniffed from the image bytes. Only image/* payloads are accepted.
func NewRequest(image []byte, mimeType string) (Request, error) {
	if len(image) == 0 {
		return Request{}, ErrEmptyImage
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Request{}, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}
	return Request{Instruction: Instruction, Image: image, MIMEType: mimeType}, nil
}

/* ─── Validated types ────────────────────────────────────────────────── */

// FoodItem is produced only by ParseResponse. Grams and calories are never
// negative.
type FoodItem struct {
	Name           string  `json:"name"`
	CookingMethod  string  `json:"cooking_method"`
	EstimatedGrams float64 `json:"estimated_grams"`
	Calories       float64 `json:"calories"`
}

// MealAnalysis is a validated model response. A zero-item meal is valid;
// failures are returned as *failure.Error and never as a zero MealAnalysis.
type MealAnalysis struct {
	FoodItems     []FoodItem `json:"food_items"`
	TotalCalories float64    `json:"total_calories"`
	HealthScore   float64    `json:"health_score"`
}

const (
	minHealthScore = 0
	maxHealthScore = 10
)

/* ─── Parsing ────────────────────────────────────────────────────────── */

// flexNumber accepts a JSON number or a string holding one, e.g. "120" or
// " 85.5 ". Non-finite values are rejected.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var raw string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	} else {
		raw = string(b)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return &numberError{value: raw}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &numberError{value: raw}
	}
	*n = flexNumber(f)
	return nil
}

type numberError struct{ value string }

func (e *numberError) Error() string {
	return "not a number: " + strconv.Quote(e.value)
}

// rawItem and rawMeal mirror the wire schema with pointer fields so a
// missing or null field can be told apart from a zero.
type rawItem struct {
	Name           *string     `json:"name"`
	CookingMethod  *string     `json:"cooking_method"`
	EstimatedGrams *flexNumber `json:"estimated_grams"`
	Calories       *flexNumber `json:"calories"`
}

type rawMeal struct {
	FoodItems     *[]*rawItem `json:"food_items"`
	TotalCalories *flexNumber `json:"total_calories"`
	HealthScore   *flexNumber `json:"health_score"`
}

// StripFences removes a surrounding markdown code fence (``` or ```json)
// that models add despite being told not to.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		// Drop the opening fence and any language tag on the same line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResponse validates the model's text against the schema. Any decode
// failure, missing or wrong-typed field, or negative grams/calories yields a
// failure.MalformedResponse error. health_score is clamped into [0,10].
func ParseResponse(text string) (*MealAnalysis, error) {
	body := StripFences(text)
	if body == "" {
		return nil, failure.New(failure.MalformedResponse, "empty response")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var raw rawMeal
	if err := dec.Decode(&raw); err != nil {
		return nil, failure.Wrap(failure.MalformedResponse, err, "decode response")
	}
	// More() reports false before a stray '}' or ']', so read a token instead.
	if _, err := dec.Token(); err != io.EOF {
		return nil, failure.New(failure.MalformedResponse, "unexpected content after JSON object")
	}

	if raw.FoodItems == nil {
		return nil, failure.New(failure.MalformedResponse, "missing field %q", "food_items")
	}
	if raw.TotalCalories == nil {
		return nil, failure.New(failure.MalformedResponse, "missing field %q", "total_calories")
	}
	if raw.HealthScore == nil {
		return nil, failure.New(failure.MalformedResponse, "missing field %q", "health_score")
	}

	items := make([]FoodItem, 0, len(*raw.FoodItems))
	for i, ri := range *raw.FoodItems {
		item, err := validateItem(i, ri)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	total := float64(*raw.TotalCalories)
	if total < 0 {
		return nil, failure.New(failure.MalformedResponse, "total_calories is negative (%g)", total)
	}

	return &MealAnalysis{
		FoodItems:     items,
		TotalCalories: total,
		HealthScore:   clamp(float64(*raw.HealthScore), minHealthScore, maxHealthScore),
	}, nil
}

func validateItem(i int, ri *rawItem) (FoodItem, error) {
	if ri == nil {
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d] is null", i)
	}
	switch {
	case ri.Name == nil:
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: missing field %q", i, "name")
	case ri.CookingMethod == nil:
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: missing field %q", i, "cooking_method")
	case ri.EstimatedGrams == nil:
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: missing field %q", i, "estimated_grams")
	case ri.Calories == nil:
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: missing field %q", i, "calories")
	}

	grams, kcal := float64(*ri.EstimatedGrams), float64(*ri.Calories)
	if grams < 0 {
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: estimated_grams is negative (%g)", i, grams)
	}
	if kcal < 0 {
		return FoodItem{}, failure.New(failure.MalformedResponse, "food_items[%d]: calories is negative (%g)", i, kcal)
	}

	return FoodItem{
		Name:           *ri.Name,
		CookingMethod:  *ri.CookingMethod,
		EstimatedGrams: grams,
		Calories:       kcal,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
