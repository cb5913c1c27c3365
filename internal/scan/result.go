package scan

// AllergenWarning flags one detected ingredient against the user's
// server-stored allergy profile.
type AllergenWarning struct {
	Allergen   string  `json:"allergen"`
	Ingredient string  `json:"ingredient"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// Ingredient is one ingredient detected in the image.
type Ingredient struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Macros holds estimated macro- and micronutrients.
type Macros struct {
	Calories float64            `json:"calories"`
	Protein  float64            `json:"protein"`
	Carbs    float64            `json:"carbs"`
	Fat      float64            `json:"fat"`
	Fiber    float64            `json:"fiber"`
	Vitamins map[string]float64 `json:"vitamins,omitempty"`
	Minerals map[string]float64 `json:"minerals,omitempty"`
}

// IngredientNutrition holds the per-100g nutrition of one ingredient.
type IngredientNutrition struct {
	NutritionPer100g Macros `json:"nutrition_per_100g"`
}

// Nutrition is the optional nutrition bundle attached to a result.
type Nutrition struct {
	TotalEstimated        *Macros                        `json:"total_estimated,omitempty"`
	IndividualIngredients map[string]IngredientNutrition `json:"individual_ingredients,omitempty"`
	Confidence            *float64                       `json:"confidence,omitempty"`
}

// Result is the outcome of one analyze call. It is immutable once received
// and superseded wholesale by the next scan.
type Result struct {
	IsSafe             bool              `json:"is_safe"`
	AllergenWarnings   []AllergenWarning `json:"allergen_warnings"`
	Ingredients        []Ingredient      `json:"ingredients"`
	ConfidenceScore    *float64          `json:"confidence_score,omitempty"`
	Nutrition          *Nutrition        `json:"nutrition,omitempty"`
	NutritionAvailable bool              `json:"nutrition_available,omitempty"`
}
