package observation

import (
	"errors"
	"fmt"
	"math"
)

// Column names as fitted by the encoder and scaler.
const (
	ColGender        = "Gender"
	ColAge           = "Age"
	ColHeight        = "Height"
	ColWeight        = "Weight"
	ColFamilyHistory = "family_history"
	ColFAVC          = "FAVC"
	ColFCVC          = "FCVC"
	ColNCP           = "NCP"
	ColCAEC          = "CAEC"
	ColSMOKE         = "SMOKE"
	ColCH2O          = "CH2O"
	ColSCC           = "SCC"
	ColFAF           = "FAF"
	ColTUE           = "TUE"
	ColCALC          = "CALC"
	ColMTRANS        = "MTRANS"
	ColBMI           = "BMI"
)

var ErrInvalidHeight = errors.New("height must be greater than zero")

// Observation is one patient's answers to the screening form. It is built
// fresh for every submission and never stored as-is.
type Observation struct {
	Gender        string  `json:"Gender"`
	Age           float64 `json:"Age" validate:"gte=14,lte=100"`
	Height        float64 `json:"Height" validate:"gte=1.4,lte=2.1"`
	Weight        float64 `json:"Weight" validate:"gte=30,lte=200"`
	FamilyHistory string  `json:"family_history"`
	FAVC          string  `json:"FAVC"`
	FCVC          float64 `json:"FCVC" validate:"gte=1,lte=3"`
	NCP           float64 `json:"NCP" validate:"gte=1,lte=4"`
	CAEC          string  `json:"CAEC"`
	SMOKE         string  `json:"SMOKE"`
	CH2O          float64 `json:"CH2O" validate:"gte=1,lte=3"`
	SCC           string  `json:"SCC"`
	FAF           float64 `json:"FAF" validate:"gte=0,lte=3"`
	TUE           float64 `json:"TUE" validate:"gte=0,lte=2"`
	CALC          string  `json:"CALC"`
	MTRANS        string  `json:"MTRANS"`
}

// BMI is weight in kilograms divided by height in meters squared.
func BMI(weight, height float64) (float64, error) {
	if height <= 0 || math.IsNaN(height) {
		return 0, ErrInvalidHeight
	}
	return weight / (height * height), nil
}

func (o Observation) BMI() (float64, error) {
	return BMI(o.Weight, o.Height)
}

func (o Observation) values() map[string]interface{} {
	return map[string]interface{}{
		ColGender:        o.Gender,
		ColAge:           o.Age,
		ColHeight:        o.Height,
		ColWeight:        o.Weight,
		ColFamilyHistory: o.FamilyHistory,
		ColFAVC:          o.FAVC,
		ColFCVC:          o.FCVC,
		ColNCP:           o.NCP,
		ColCAEC:          o.CAEC,
		ColSMOKE:         o.SMOKE,
		ColCH2O:          o.CH2O,
		ColSCC:           o.SCC,
		ColFAF:           o.FAF,
		ColTUE:           o.TUE,
		ColCALC:          o.CALC,
		ColMTRANS:        o.MTRANS,
	}
}

// Record assembles the one-row record for schema. Every form field must be
// a schema column; BMI is derived and only included when the schema has it.
func (o Observation) Record(schema Schema) (Record, error) {
	values := o.values()
	if schema.Has(ColBMI) {
		bmi, err := o.BMI()
		if err != nil {
			return nil, err
		}
		values[ColBMI] = bmi
	}

	mismatch := &SchemaMismatchError{}
	record := make(Record, len(schema.Columns))
	for _, col := range schema.Columns {
		v, ok := values[col]
		if !ok {
			mismatch.Missing = append(mismatch.Missing, col)
			continue
		}
		record[col] = v
	}
	for _, col := range columnOrder {
		if _, ok := values[col]; ok && !schema.Has(col) {
			mismatch.Unexpected = append(mismatch.Unexpected, col)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 {
		return nil, mismatch
	}
	return record, nil
}

// Record is a single row keyed by fitted column name. Values are string for
// categorical columns and float64 for numeric ones.
type Record map[string]interface{}

func (r Record) Strings(columns []string) ([]string, error) {
	out := make([]string, len(columns))
	for i, col := range columns {
		v, ok := r[col]
		if !ok {
			return nil, &SchemaMismatchError{Missing: []string{col}}
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("column %s: expected categorical value, got %T: %w", col, v, ErrTypeMismatch)
		}
		out[i] = s
	}
	return out, nil
}

func (r Record) Floats(columns []string) ([]float64, error) {
	out := make([]float64, len(columns))
	for i, col := range columns {
		v, ok := r[col]
		if !ok {
			return nil, &SchemaMismatchError{Missing: []string{col}}
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected numeric value, got %T: %w", col, v, ErrTypeMismatch)
		}
		out[i] = f
	}
	return out, nil
}
