package preprocess

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// Scaler is the exported form of a fitted numeric scaler. Standard scalers
// compute (x - mean) / scale, min-max scalers compute x*scale + min.
type Scaler struct {
	Kind     string    `json:"type"`
	Columns  []string  `json:"feature_names"`
	Mean     []float64 `json:"mean,omitempty"`
	Scale    []float64 `json:"scale,omitempty"`
	Min      []float64 `json:"min,omitempty"`
	WithMean *bool     `json:"with_mean,omitempty"`
	WithStd  *bool     `json:"with_std,omitempty"`
}

func DecodeScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func (s *Scaler) Validate() error {
	n := len(s.Columns)
	if n == 0 {
		return errors.New("scaler has no columns")
	}
	if s.Kind == "" {
		s.Kind = ScalerStandard
	}
	switch s.Kind {
	case ScalerStandard:
		if enabled(s.WithMean) && len(s.Mean) != n {
			return fmt.Errorf("scaler mean has %d values for %d columns", len(s.Mean), n)
		}
		if enabled(s.WithStd) && len(s.Scale) != n {
			return fmt.Errorf("scaler scale has %d values for %d columns", len(s.Scale), n)
		}
	case ScalerMinMax:
		if len(s.Min) != n || len(s.Scale) != n {
			return fmt.Errorf("minmax scaler needs %d min and scale values", n)
		}
	default:
		return fmt.Errorf("unsupported scaler type %q", s.Kind)
	}
	return nil
}

func (s *Scaler) FeatureNames() []string {
	return s.Columns
}

func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Columns) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.Columns), len(row))
	}
	out := make([]float64, len(row))
	for i, x := range row {
		switch s.Kind {
		case ScalerMinMax:
			x = x*s.Scale[i] + s.Min[i]
		default:
			if enabled(s.WithMean) {
				x -= s.Mean[i]
			}
			if enabled(s.WithStd) {
				// zero variance columns are left unscaled
				if scale := s.Scale[i]; scale != 0 {
					x /= scale
				}
			}
		}
		out[i] = x
	}
	return out, nil
}
