package labels

import "strings"

var classifications = map[string]string{
	"Insufficient_Weight": "Abaixo do peso",
	"Normal_Weight":       "Peso normal",
	"Overweight_Level_I":  "Sobrepeso nível I",
	"Overweight_Level_II": "Sobrepeso nível II",
	"Obesity_Type_I":      "Obesidade tipo I",
	"Obesity_Type_II":     "Obesidade tipo II",
	"Obesity_Type_III":    "Obesidade tipo III",
}

// Classification returns the readable classification for a classifier
// label. Unknown labels are returned with underscores turned into spaces.
func Classification(label string) string {
	if c, ok := classifications[label]; ok {
		return c
	}
	return strings.ReplaceAll(label, "_", " ")
}

// BMICategory returns the WHO adult band for bmi.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Abaixo do peso"
	case bmi < 25:
		return "Peso normal"
	case bmi < 30:
		return "Sobrepeso"
	case bmi < 35:
		return "Obesidade grau I"
	case bmi < 40:
		return "Obesidade grau II"
	default:
		return "Obesidade grau III"
	}
}
