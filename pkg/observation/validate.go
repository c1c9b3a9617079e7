package observation

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var errOutOfRange = errors.New("value out of range")

var validate = validator.New()

// Fixed answer sets of the form. They must equal the categories the encoder
// was fitted with; the encoder stays the authority and rejects anything else.
var (
	GenderChoices    = []string{"Male", "Female"}
	YesNoChoices     = []string{"yes", "no"}
	FrequencyChoices = []string{"no", "Sometimes", "Frequently", "Always"}
	TransportChoices = []string{"Automobile", "Motorbike", "Bike", "Public_Transportation", "Walking"}
)

type ValidationError struct {
	Field  string
	reason error
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.reason.Error())
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validate enforces the numeric bounds of the form widgets.
func (o Observation) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ValidationError{reason: err}
	}
	fe := fieldErrs[0]
	return ValidationError{
		Field:  columnFor(fe.StructField()),
		reason: fmt.Errorf("%v must be %s %s: %w", fe.Value(), boundWord(fe.Tag()), fe.Param(), errOutOfRange),
	}
}

func boundWord(tag string) string {
	switch tag {
	case "gte":
		return ">="
	case "lte":
		return "<="
	case "gt":
		return ">"
	case "lt":
		return "<"
	}
	return tag
}

func columnFor(structField string) string {
	switch structField {
	case "FamilyHistory":
		return ColFamilyHistory
	}
	return structField
}

// FromForm reads an observation from submitted form values keyed by column
// name.
func FromForm(values url.Values) (Observation, error) {
	var o Observation
	var err error
	num := func(col string) float64 {
		if err != nil {
			return 0
		}
		raw := strings.TrimSpace(values.Get(col))
		if raw == "" {
			err = ValidationError{Field: col, reason: errors.New("value required")}
			return 0
		}
		// browsers in pt-BR locales may submit decimal commas
		f, perr := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if perr != nil {
			err = ValidationError{Field: col, reason: fmt.Errorf("invalid number %q", raw)}
			return 0
		}
		return f
	}

	o.Gender = values.Get(ColGender)
	o.Age = num(ColAge)
	o.Height = num(ColHeight)
	o.Weight = num(ColWeight)
	o.FamilyHistory = values.Get(ColFamilyHistory)
	o.FAVC = values.Get(ColFAVC)
	o.FCVC = num(ColFCVC)
	o.NCP = num(ColNCP)
	o.CAEC = values.Get(ColCAEC)
	o.SMOKE = values.Get(ColSMOKE)
	o.CH2O = num(ColCH2O)
	o.SCC = values.Get(ColSCC)
	o.FAF = num(ColFAF)
	o.TUE = num(ColTUE)
	o.CALC = values.Get(ColCALC)
	o.MTRANS = values.Get(ColMTRANS)
	return o, err
}

// Values returns the observation as form values, the inverse of FromForm.
func (o Observation) Values() url.Values {
	values := url.Values{}
	for col, v := range o.values() {
		switch x := v.(type) {
		case string:
			values.Set(col, x)
		case float64:
			values.Set(col, strconv.FormatFloat(x, 'f', -1, 64))
		}
	}
	return values
}

// Set assigns a column value from its textual form; used by spreadsheet
// readers.
func (o *Observation) Set(col, raw string) error {
	raw = strings.TrimSpace(raw)
	if IsCategorical(col) {
		switch col {
		case ColGender:
			o.Gender = raw
		case ColFamilyHistory:
			o.FamilyHistory = raw
		case ColFAVC:
			o.FAVC = raw
		case ColCAEC:
			o.CAEC = raw
		case ColSMOKE:
			o.SMOKE = raw
		case ColSCC:
			o.SCC = raw
		case ColCALC:
			o.CALC = raw
		case ColMTRANS:
			o.MTRANS = raw
		}
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ValidationError{Field: col, reason: fmt.Errorf("invalid number %q", raw)}
	}
	switch col {
	case ColAge:
		o.Age = f
	case ColHeight:
		o.Height = f
	case ColWeight:
		o.Weight = f
	case ColFCVC:
		o.FCVC = f
	case ColNCP:
		o.NCP = f
	case ColCH2O:
		o.CH2O = f
	case ColFAF:
		o.FAF = f
	case ColTUE:
		o.TUE = f
	case ColBMI:
		// derived, recomputed from height and weight
	default:
		return ValidationError{Field: col, reason: errors.New("unknown column")}
	}
	return nil
}
