// Package nutrition turns whatever JSON a vision model produced into the
// fixed AnalysisResult schema. Normalize never fails: missing or mistyped
// fields fall back to documented defaults and totals are derived from items.
package nutrition

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"nutriscan/models"
)

const defaultConfidence = 0.5

var macroKeys = []string{"protein_g", "carbs_g", "fat_g", "fiber_g", "sugar_g"}

var microKeys = []string{
	"sodium_mg", "potassium_mg", "calcium_mg", "iron_mg",
	"vitamin_a_mcg", "vitamin_c_mg", "cholesterol_mg",
}

// Normalize coerces an arbitrary decoded JSON value into an AnalysisResult.
func Normalize(raw any) models.AnalysisResult {
	root := asMap(raw)

	items := asSlice(root["composition"])
	composition := make([]models.FoodItem, 0, len(items))
	for _, it := range items {
		composition = append(composition, normalizeItem(it))
	}

	result := models.AnalysisResult{
		ImageMeta:   normalizeImageMeta(root["image_meta"]),
		Composition: composition,
		Totals:      normalizeTotals(root["totals"], composition),
	}
	if notes, ok := root["notes"].(string); ok {
		result.Notes = &notes
	}
	return result
}

// DeriveOrientation maps pixel dimensions to an orientation label.
func DeriveOrientation(width, height int) string {
	switch {
	case width == height:
		return models.OrientationSquare
	case width > height:
		return models.OrientationLandscape
	default:
		return models.OrientationPortrait
	}
}

// ValidOrientation reports whether s is one of the accepted orientation labels.
func ValidOrientation(s string) bool {
	switch s {
	case models.OrientationPortrait, models.OrientationLandscape, models.OrientationSquare:
		return true
	}
	return false
}

func normalizeImageMeta(v any) models.ImageMeta {
	m := asMap(v)
	meta := models.ImageMeta{
		Width:  dimension(m["width"]),
		Height: dimension(m["height"]),
	}
	if o, ok := m["orientation"].(string); ok && ValidOrientation(o) {
		meta.Orientation = o
	} else {
		meta.Orientation = DeriveOrientation(meta.Width, meta.Height)
	}
	return meta
}

func normalizeItem(v any) models.FoodItem {
	item := asMap(v)
	nut := asMap(item["nutrition"])
	scopes := []map[string]any{asMap(nut["macros"]), nut, item}
	microScopes := []map[string]any{asMap(nut["micros"]), nut, item}

	allergens, ok := nut["allergens"]
	if !ok {
		allergens = item["allergens"]
	}

	return models.FoodItem{
		Label:       label(item["label"]),
		Confidence:  clamp(number(item["confidence"], defaultConfidence), 0, 1),
		ServingEstG: math.Max(number(item["serving_est_g"], 0), 0),
		BBoxNorm:    normalizeBBox(item["bbox_norm"]),
		Nutrition: models.Nutrition{
			CaloriesKcal: lookup([]map[string]any{nut, item}, "calories_kcal", 0),
			Macros:       macrosFrom(scopes, nil),
			Micros:       microsFrom(microScopes, nil),
			Allergens:    stringList(allergens),
		},
	}
}

// normalizeBBox accepts either {x,y,w,h} or a four-element [x,y,w,h] array.
func normalizeBBox(v any) models.BBoxNorm {
	if arr, ok := v.([]any); ok && len(arr) == 4 {
		return models.BBoxNorm{
			X: clamp(number(arr[0], 0), 0, 1),
			Y: clamp(number(arr[1], 0), 0, 1),
			W: clamp(number(arr[2], 0), 0, 1),
			H: clamp(number(arr[3], 0), 0, 1),
		}
	}
	m := asMap(v)
	return models.BBoxNorm{
		X: clamp(number(m["x"], 0), 0, 1),
		Y: clamp(number(m["y"], 0), 0, 1),
		W: clamp(number(m["w"], 0), 0, 1),
		H: clamp(number(m["h"], 0), 0, 1),
	}
}

func normalizeTotals(v any, items []models.FoodItem) models.Totals {
	t := asMap(v)
	scopes := []map[string]any{asMap(t["macros"]), t}
	microScopes := []map[string]any{asMap(t["micros"]), t}

	calories, ok := lookupFinite([]map[string]any{t}, "calories_kcal")
	if !ok {
		calories = sum(items, func(it models.FoodItem) float64 { return it.Nutrition.CaloriesKcal })
	}
	serving, ok := lookupFinite([]map[string]any{t}, "serving_total_g")
	if !ok {
		serving = sum(items, func(it models.FoodItem) float64 { return it.ServingEstG })
	}

	var allergens []string
	if supplied, ok := t["allergens"].([]any); ok {
		allergens = stringList(supplied)
	} else {
		allergens = unionAllergens(items)
	}

	return models.Totals{
		CaloriesKcal:  calories,
		Macros:        macrosFrom(scopes, items),
		Micros:        microsFrom(microScopes, items),
		ServingTotalG: serving,
		Allergens:     allergens,
	}
}

// macrosFrom resolves each macro field from scopes; when items is non-nil a
// missing field becomes the sum over items instead of zero.
func macrosFrom(scopes []map[string]any, items []models.FoodItem) models.Macros {
	vals := resolve(scopes, macroKeys, items, func(it models.FoodItem) []float64 {
		m := it.Nutrition.Macros
		return []float64{m.ProteinG, m.CarbsG, m.FatG, m.FiberG, m.SugarG}
	})
	return models.Macros{
		ProteinG: vals[0],
		CarbsG:   vals[1],
		FatG:     vals[2],
		FiberG:   vals[3],
		SugarG:   vals[4],
	}
}

func microsFrom(scopes []map[string]any, items []models.FoodItem) models.Micros {
	vals := resolve(scopes, microKeys, items, func(it models.FoodItem) []float64 {
		m := it.Nutrition.Micros
		return []float64{m.SodiumMg, m.PotassiumMg, m.CalciumMg, m.IronMg, m.VitaminAMcg, m.VitaminCMg, m.CholesterolMg}
	})
	return models.Micros{
		SodiumMg:      vals[0],
		PotassiumMg:   vals[1],
		CalciumMg:     vals[2],
		IronMg:        vals[3],
		VitaminAMcg:   vals[4],
		VitaminCMg:    vals[5],
		CholesterolMg: vals[6],
	}
}

func resolve(scopes []map[string]any, keys []string, items []models.FoodItem, fields func(models.FoodItem) []float64) []float64 {
	out := make([]float64, len(keys))
	for i, key := range keys {
		if v, ok := lookupFinite(scopes, key); ok {
			out[i] = v
			continue
		}
		if items == nil {
			continue
		}
		idx := i
		out[i] = sum(items, func(it models.FoodItem) float64 { return fields(it)[idx] })
	}
	return out
}

// sum adds field values through decimal so totals like 0.1+0.2 come out as 0.3.
func sum(items []models.FoodItem, field func(models.FoodItem) float64) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(field(it)))
	}
	f, _ := total.Float64()
	// Finite items can still add up past the float64 range.
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}

func unionAllergens(items []models.FoodItem) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, it := range items {
		for _, a := range it.Nutrition.Allergens {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func lookup(scopes []map[string]any, key string, def float64) float64 {
	if v, ok := lookupFinite(scopes, key); ok {
		return v
	}
	return def
}

func lookupFinite(scopes []map[string]any, key string) (float64, bool) {
	for _, s := range scopes {
		if v, ok := toFloat(s[key]); ok {
			return v, true
		}
	}
	return 0, false
}

func number(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// toFloat accepts finite JSON numbers and numeric strings. Booleans are not numbers.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func dimension(v any) int {
	f, ok := toFloat(v)
	if !ok || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func clamp(f, lo, hi float64) float64 {
	return math.Min(math.Max(f, lo), hi)
}

func label(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case nil:
		return ""
	default:
		return stringify(l)
	}
}

// stringList coerces a JSON array into strings; anything else yields an empty list.
func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if el == nil {
			continue
		}
		out = append(out, stringify(el))
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}
