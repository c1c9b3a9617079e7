// Package batch scores spreadsheets of historical patient observations.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
	"github.com/xuri/excelize/v2"
)

// Target columns carrying the ground-truth label, in lookup order.
var TargetColumns = []string{"NObeyesdad", "Obesity"}

const ResultsSheet = "Predictions"

// Row is one spreadsheet observation. Number is the 1-based sheet row.
type Row struct {
	Number      int
	Observation observation.Observation
	Expected    string
	Err         error
}

type Result struct {
	Row
	Prediction *models.PredictionResult
}

func (r Result) Correct() bool {
	return r.Err == nil && r.Expected != "" && r.Prediction != nil && r.Prediction.Label == r.Expected
}

type Summary struct {
	Total      int     `json:"total"`
	Scored     int     `json:"scored"`
	Failed     int     `json:"failed"`
	WithTarget int     `json:"with_target"`
	Correct    int     `json:"correct"`
	Accuracy   float64 `json:"accuracy"`
}

// Predictor is the prediction call the scorer needs.
type Predictor interface {
	Predict(ctx context.Context, obs observation.Observation) (models.PredictionResult, error)
}

// ReadObservations reads sheet (the first sheet when empty). The header row
// names the columns; every form column must be present, other columns are
// ignored. Rows that fail to parse keep their error and row number.
func ReadObservations(path, sheet string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns, target, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var out []Row
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := Row{Number: i + 2}
		for _, c := range columns {
			if err := row.Observation.Set(c.name, cell(cells, c.index)); err != nil {
				row.Err = fmt.Errorf("row %d: %w", row.Number, err)
				break
			}
		}
		if target >= 0 {
			row.Expected = strings.TrimSpace(cell(cells, target))
		}
		out = append(out, row)
	}
	logger.Log.WithFields(map[string]interface{}{
		"path":  path,
		"sheet": sheet,
		"rows":  len(out),
	}).Info("Observations read")
	return out, nil
}

type column struct {
	name  string
	index int
}

func headerIndex(header []string) ([]column, int, error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[strings.TrimSpace(name)] = i
	}

	var columns []column
	var missing []string
	for _, col := range observation.DefaultSchema(false).Columns {
		idx, ok := byName[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		columns = append(columns, column{name: col, index: idx})
	}
	if len(missing) > 0 {
		return nil, -1, fmt.Errorf("header is missing columns: %s", strings.Join(missing, ", "))
	}

	target := -1
	for _, name := range TargetColumns {
		if idx, ok := byName[name]; ok {
			target = idx
			break
		}
	}
	return columns, target, nil
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Score predicts every row in order. Row failures are kept on the result and
// do not stop the run; only context cancellation does.
func Score(ctx context.Context, predictor Predictor, rows []Row) ([]Result, Summary, error) {
	results := make([]Result, 0, len(rows))
	var summary Summary

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, summary, err
		}
		result := Result{Row: row}
		if row.Err == nil {
			prediction, err := predictor.Predict(ctx, row.Observation)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return results, summary, err
				}
				result.Err = fmt.Errorf("row %d: %w", row.Number, err)
			} else {
				result.Prediction = &prediction
			}
		}

		summary.Total++
		if result.Err != nil {
			summary.Failed++
			logger.Log.WithError(result.Err).WithField("row", row.Number).Warn("row not scored")
		} else {
			summary.Scored++
			if row.Expected != "" {
				summary.WithTarget++
				if result.Correct() {
					summary.Correct++
				}
			}
		}
		results = append(results, result)
	}

	if summary.WithTarget > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.WithTarget)
	}
	return results, summary, nil
}

var resultHeader = []interface{}{
	"Row", observation.ColGender, observation.ColAge, observation.ColHeight, observation.ColWeight,
	observation.ColFamilyHistory, observation.ColFAVC, observation.ColFCVC, observation.ColNCP,
	observation.ColCAEC, observation.ColSMOKE, observation.ColCH2O, observation.ColSCC,
	observation.ColFAF, observation.ColTUE, observation.ColCALC, observation.ColMTRANS,
	"Expected", "Predicted", "Classification", "Confidence", "BMI", "BMI_Category", "Error",
}

// WriteResults writes one annotated row per result to a new workbook.
func WriteResults(path string, results []Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ResultsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &resultHeader); err != nil {
		return err
	}

	for i, r := range results {
		o := r.Observation
		values := []interface{}{
			r.Number, o.Gender, o.Age, o.Height, o.Weight,
			o.FamilyHistory, o.FAVC, o.FCVC, o.NCP,
			o.CAEC, o.SMOKE, o.CH2O, o.SCC,
			o.FAF, o.TUE, o.CALC, o.MTRANS,
			r.Expected,
		}
		if p := r.Prediction; p != nil {
			values = append(values, p.Label, p.Classification, p.Confidence, p.BMI, p.BMICategory, "")
		} else {
			values = append(values, "", "", "", "", "", r.Err.Error())
		}

		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ResultsSheet, cellName, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r.Number, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(results),
	}).Info("Results written")
	return nil
}
