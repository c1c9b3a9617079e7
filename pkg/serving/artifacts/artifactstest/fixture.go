// Package artifactstest writes a small, consistent artifact set fitted on
// the default schema. The forest only looks at BMI and at walking as the
// transport mode, which keeps expected labels easy to derive by hand.
package artifactstest

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/vitalis-health/obesity-risk/pkg/ml/forest"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
)

// Classes in the order the classifier was fitted (sorted).
var Classes = []string{
	"Insufficient_Weight",
	"Normal_Weight",
	"Obesity_Type_I",
	"Obesity_Type_II",
	"Obesity_Type_III",
	"Overweight_Level_I",
	"Overweight_Level_II",
}

func onehot(class string) []float64 {
	v := make([]float64, len(Classes))
	for i, c := range Classes {
		if c == class {
			v[i] = 1
		}
	}
	return v
}

func Encoder() *preprocess.OneHotEncoder {
	schema := observation.DefaultSchema(true)
	categories := map[string][]string{
		observation.ColGender:        {"Female", "Male"},
		observation.ColFamilyHistory: {"no", "yes"},
		observation.ColFAVC:          {"no", "yes"},
		observation.ColCAEC:          {"Always", "Frequently", "Sometimes", "no"},
		observation.ColSMOKE:         {"no", "yes"},
		observation.ColSCC:           {"no", "yes"},
		observation.ColCALC:          {"Always", "Frequently", "Sometimes", "no"},
		observation.ColMTRANS:        {"Automobile", "Bike", "Motorbike", "Public_Transportation", "Walking"},
	}
	cats := make([][]string, len(schema.Categorical))
	for i, col := range schema.Categorical {
		cats[i] = categories[col]
	}
	enc, err := preprocess.NewOneHotEncoder(schema.Categorical, cats, preprocess.DropNone, preprocess.HandleUnknownError)
	if err != nil {
		panic(err)
	}
	return enc
}

// Scaler centres BMI on 25 with scale 5, so scaled BMI 1.0 is BMI 30.
func Scaler(withBMI bool) *preprocess.Scaler {
	schema := observation.DefaultSchema(withBMI)
	mean := make([]float64, len(schema.Numeric))
	scale := make([]float64, len(schema.Numeric))
	for i, col := range schema.Numeric {
		mean[i], scale[i] = 0, 1
		if col == observation.ColBMI {
			mean[i], scale[i] = 25, 5
		}
	}
	return &preprocess.Scaler{Kind: preprocess.ScalerStandard, Columns: schema.Numeric, Mean: mean, Scale: scale}
}

func Model() *forest.Forest {
	const bmi = 8      // BMI is the last numeric column
	const walking = 31 // MTRANS_Walking is the last indicator
	return model(32, bmi, []float64{1.0, -1.3, 2.0}, walking)
}

// ModelWithoutBMI is fitted on the schema without BMI; the first tree splits
// on raw weight at 80, 50 and 110 kg instead.
func ModelWithoutBMI() *forest.Forest {
	const weight = 2
	const walking = 30
	return model(31, weight, []float64{80, 50, 110}, walking)
}

func model(nFeatures, splitOn int, thresholds []float64, walking int) *forest.Forest {
	return &forest.Forest{
		Type:      "random_forest",
		Classes:   Classes,
		NFeatures: nFeatures,
		Trees: []forest.Tree{
			{
				ChildrenLeft:  []int{1, 3, 5, -1, -1, -1, -1},
				ChildrenRight: []int{2, 4, 6, -1, -1, -1, -1},
				Feature:       []int{splitOn, splitOn, splitOn, -2, -2, -2, -2},
				Threshold:     []float64{thresholds[0], thresholds[1], thresholds[2], -2, -2, -2, -2},
				Value: [][]float64{
					make([]float64, len(Classes)),
					make([]float64, len(Classes)),
					make([]float64, len(Classes)),
					onehot("Insufficient_Weight"),
					onehot("Normal_Weight"),
					onehot("Obesity_Type_I"),
					onehot("Obesity_Type_II"),
				},
			},
			{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{walking, -2, -2},
				Threshold:     []float64{0.5, -2, -2},
				Value: [][]float64{
					make([]float64, len(Classes)),
					{0, 2, 0, 0, 0, 2, 0},
					onehot("Normal_Weight"),
				},
			},
		},
	}
}

// Write stores model.json, encoder.json and scaler.json in dir.
func Write(dir string) error {
	return write(dir, Model(), Scaler(true))
}

// WriteWithoutBMI stores an artifact set fitted without the BMI column.
func WriteWithoutBMI(dir string) error {
	return write(dir, ModelWithoutBMI(), Scaler(false))
}

func write(dir string, model *forest.Forest, scaler *preprocess.Scaler) error {
	files := map[string]interface{}{
		"model.json":   model,
		"encoder.json": Encoder(),
		"scaler.json":  scaler,
	}
	for name, artifact := range files {
		payload, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}
