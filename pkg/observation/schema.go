package observation

import (
	"errors"
	"fmt"
	"strings"
)

var ErrTypeMismatch = errors.New("column type does not match fitted schema")

// columnOrder is the column order of the form and of the fitted data frame.
var columnOrder = []string{
	ColGender, ColAge, ColHeight, ColWeight, ColFamilyHistory, ColFAVC, ColFCVC, ColNCP,
	ColCAEC, ColSMOKE, ColCH2O, ColSCC, ColFAF, ColTUE, ColCALC, ColMTRANS, ColBMI,
}

var categoricalColumns = map[string]struct{}{
	ColGender: {}, ColFamilyHistory: {}, ColFAVC: {}, ColCAEC: {},
	ColSMOKE: {}, ColSCC: {}, ColCALC: {}, ColMTRANS: {},
}

// Schema is the feature layout the encoder and scaler were fitted on.
type Schema struct {
	Columns     []string `json:"columns"`
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`

	set map[string]struct{}
}

// NewSchema keeps the numeric and categorical column order as given (that is
// the order the fitted transformers expect) and lists Columns in form order.
func NewSchema(numeric, categorical []string) Schema {
	s := Schema{Numeric: numeric, Categorical: categorical, set: make(map[string]struct{})}
	for _, col := range numeric {
		s.set[col] = struct{}{}
	}
	for _, col := range categorical {
		s.set[col] = struct{}{}
	}
	for _, col := range columnOrder {
		if _, ok := s.set[col]; ok {
			s.Columns = append(s.Columns, col)
		}
	}
	known := make(map[string]struct{}, len(columnOrder))
	for _, col := range columnOrder {
		known[col] = struct{}{}
	}
	for _, group := range [][]string{numeric, categorical} {
		for _, col := range group {
			if _, ok := known[col]; !ok {
				s.Columns = append(s.Columns, col)
			}
		}
	}
	return s
}

// DefaultSchema is the layout of the original training frame: every
// non-object column is numeric.
func DefaultSchema(withBMI bool) Schema {
	var numeric, categorical []string
	for _, col := range columnOrder {
		if col == ColBMI && !withBMI {
			continue
		}
		if IsCategorical(col) {
			categorical = append(categorical, col)
		} else {
			numeric = append(numeric, col)
		}
	}
	return NewSchema(numeric, categorical)
}

func IsCategorical(col string) bool {
	_, ok := categoricalColumns[col]
	return ok
}

func (s Schema) Has(col string) bool {
	if s.set == nil {
		for _, c := range s.Columns {
			if c == col {
				return true
			}
		}
		return false
	}
	_, ok := s.set[col]
	return ok
}

// SchemaMismatchError reports columns the fitted schema expects but the
// record cannot supply, and record fields the schema does not know.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected columns [%s]", strings.Join(e.Unexpected, ", ")))
	}
	return "record does not match fitted schema: " + strings.Join(parts, "; ")
}

func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}
