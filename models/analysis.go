package models

// AnalysisRequest is the body accepted by both analyze endpoints.
type AnalysisRequest struct {
	DataURL string `json:"dataURL"`
}

// Orientation values accepted in image_meta.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
	OrientationSquare    = "square"
)

type ImageMeta struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Orientation string `json:"orientation"`
}

type BBoxNorm struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Macros struct {
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
	SugarG   float64 `json:"sugar_g"`
}

type Micros struct {
	SodiumMg      float64 `json:"sodium_mg"`
	PotassiumMg   float64 `json:"potassium_mg"`
	CalciumMg     float64 `json:"calcium_mg"`
	IronMg        float64 `json:"iron_mg"`
	VitaminAMcg   float64 `json:"vitamin_a_mcg"`
	VitaminCMg    float64 `json:"vitamin_c_mg"`
	CholesterolMg float64 `json:"cholesterol_mg"`
}

// Nutrition is the per-item nutrient estimate.
type Nutrition struct {
	CaloriesKcal float64  `json:"calories_kcal"`
	Macros       Macros   `json:"macros"`
	Micros       Micros   `json:"micros"`
	Allergens    []string `json:"allergens"`
}

// FoodItem is one recognized food in the photo.
type FoodItem struct {
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	ServingEstG float64   `json:"serving_est_g"`
	BBoxNorm    BBoxNorm  `json:"bbox_norm"`
	Nutrition   Nutrition `json:"nutrition"`
}

// Totals has the same shape as Nutrition plus the total serving weight.
type Totals struct {
	CaloriesKcal  float64  `json:"calories_kcal"`
	Macros        Macros   `json:"macros"`
	Micros        Micros   `json:"micros"`
	ServingTotalG float64  `json:"serving_total_g"`
	Allergens     []string `json:"allergens"`
}

// AnalysisResult is the normalized response returned to clients.
type AnalysisResult struct {
	ImageMeta   ImageMeta  `json:"image_meta"`
	Composition []FoodItem `json:"composition"`
	Totals      Totals     `json:"totals"`
	Notes       *string    `json:"notes,omitempty"`
}
