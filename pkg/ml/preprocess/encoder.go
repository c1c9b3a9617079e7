package preprocess

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	DropNone     = ""
	DropFirst    = "first"
	DropIfBinary = "if_binary"

	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// UnknownCategoryError is returned when a value was not seen while the
// encoder was fitted. Matching is case and spelling exact.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("found unknown category %q in column %q during transform", e.Value, e.Column)
}

func IsUnknownCategory(err error) bool {
	var uc *UnknownCategoryError
	return errors.As(err, &uc)
}

// OneHotEncoder is the exported form of a fitted one-hot encoder.
type OneHotEncoder struct {
	Columns       []string   `json:"feature_names"`
	Categories    [][]string `json:"categories"`
	Drop          string     `json:"drop,omitempty"`
	HandleUnknown string     `json:"handle_unknown,omitempty"`

	index []map[string]int
}

func DecodeEncoder(data []byte) (*OneHotEncoder, error) {
	var enc OneHotEncoder
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode encoder: %w", err)
	}
	if err := enc.init(); err != nil {
		return nil, err
	}
	return &enc, nil
}

func NewOneHotEncoder(columns []string, categories [][]string, drop, handleUnknown string) (*OneHotEncoder, error) {
	enc := &OneHotEncoder{
		Columns:       columns,
		Categories:    categories,
		Drop:          drop,
		HandleUnknown: handleUnknown,
	}
	if err := enc.init(); err != nil {
		return nil, err
	}
	return enc, nil
}

func (e *OneHotEncoder) init() error {
	if len(e.Columns) == 0 {
		return errors.New("encoder has no columns")
	}
	if len(e.Columns) != len(e.Categories) {
		return fmt.Errorf("encoder has %d columns but %d category lists", len(e.Columns), len(e.Categories))
	}
	switch e.Drop {
	case DropNone, DropFirst, DropIfBinary:
	default:
		return fmt.Errorf("unsupported encoder drop %q", e.Drop)
	}
	if e.HandleUnknown == "" {
		e.HandleUnknown = HandleUnknownError
	}
	if e.HandleUnknown != HandleUnknownError && e.HandleUnknown != HandleUnknownIgnore {
		return fmt.Errorf("unsupported handle_unknown %q", e.HandleUnknown)
	}

	e.index = make([]map[string]int, len(e.Categories))
	for i, cats := range e.Categories {
		if len(cats) == 0 {
			return fmt.Errorf("column %q has no categories", e.Columns[i])
		}
		m := make(map[string]int, len(cats))
		for pos, c := range cats {
			if _, dup := m[c]; dup {
				return fmt.Errorf("column %q has duplicate category %q", e.Columns[i], c)
			}
			m[c] = pos
		}
		e.index[i] = m
	}
	return nil
}

func (e *OneHotEncoder) FeatureNames() []string {
	return e.Columns
}

func (e *OneHotEncoder) dropped(col int) int {
	switch e.Drop {
	case DropFirst:
		return 0
	case DropIfBinary:
		if len(e.Categories[col]) == 2 {
			return 0
		}
	}
	return -1
}

// OutputWidth is the number of indicator columns Transform produces.
func (e *OneHotEncoder) OutputWidth() int {
	width := 0
	for i, cats := range e.Categories {
		width += len(cats)
		if e.dropped(i) >= 0 {
			width--
		}
	}
	return width
}

// OutputNames returns "<column>_<category>" for every indicator column.
func (e *OneHotEncoder) OutputNames() []string {
	names := make([]string, 0, e.OutputWidth())
	for i, cats := range e.Categories {
		drop := e.dropped(i)
		for pos, c := range cats {
			if pos == drop {
				continue
			}
			names = append(names, e.Columns[i]+"_"+c)
		}
	}
	return names
}

func (e *OneHotEncoder) Transform(row []string) ([]float64, error) {
	if len(row) != len(e.Columns) {
		return nil, fmt.Errorf("encoder expects %d values, got %d", len(e.Columns), len(row))
	}
	out := make([]float64, 0, e.OutputWidth())
	for i, value := range row {
		cats := e.Categories[i]
		drop := e.dropped(i)
		pos, ok := e.index[i][value]
		if !ok && e.HandleUnknown == HandleUnknownError {
			return nil, &UnknownCategoryError{Column: e.Columns[i], Value: value}
		}
		for p := range cats {
			if p == drop {
				continue
			}
			if ok && p == pos {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}
