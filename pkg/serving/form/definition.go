package form

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitalis-health/obesity-risk/pkg/observation"
	"gopkg.in/yaml.v3"
)

const (
	KindSelect = "select"
	KindNumber = "number"
	KindSlider = "slider"
)

type Field struct {
	Name          string   `yaml:"name" json:"name"`
	Label         string   `yaml:"label" json:"label"`
	Kind          string   `yaml:"kind" json:"kind"`
	Choices       []string `yaml:"choices,omitempty" json:"choices,omitempty"`
	DefaultChoice string   `yaml:"default_choice,omitempty" json:"default_choice,omitempty"`
	Min           float64  `yaml:"min" json:"min"`
	Max           float64  `yaml:"max" json:"max"`
	Step          float64  `yaml:"step" json:"step"`
	Default       float64  `yaml:"default" json:"default"`
}

type Definition struct {
	Title        string  `yaml:"title" json:"title"`
	Icon         string  `yaml:"icon" json:"icon"`
	Intro        string  `yaml:"intro" json:"intro"`
	Header       string  `yaml:"header" json:"header"`
	SubmitLabel  string  `yaml:"submit_label" json:"submit_label"`
	ResultPrefix string  `yaml:"result_prefix" json:"result_prefix"`
	ErrorPrefix  string  `yaml:"error_prefix" json:"error_prefix"`
	Disclaimer   string  `yaml:"disclaimer" json:"disclaimer"`
	Fields       []Field `yaml:"fields" json:"fields"`
}

func selectField(name, label string, choices []string) Field {
	return Field{Name: name, Label: label, Kind: KindSelect, Choices: choices, DefaultChoice: choices[0]}
}

// DefaultDefinition is the screening form as used by the clinical team.
func DefaultDefinition() Definition {
	return Definition{
		Title:        "Sistema Preditivo de Obesidade",
		Icon:         "🩺",
		Intro:        "Este sistema utiliza Machine Learning para auxiliar a equipe médica na identificação do nível de obesidade de um paciente.",
		Header:       "📋 Dados do paciente",
		SubmitLabel:  "🔍 Realizar predição",
		ResultPrefix: "✅ Nível de obesidade previsto:",
		ErrorPrefix:  "Erro ao realizar a predição:",
		Disclaimer:   "⚠️ Este resultado é apenas um apoio à decisão e não substitui avaliação médica.",
		Fields: []Field{
			selectField(observation.ColGender, "Gênero", observation.GenderChoices),
			{Name: observation.ColAge, Label: "Idade", Kind: KindNumber, Min: 14, Max: 100, Step: 1, Default: 30},
			{Name: observation.ColHeight, Label: "Altura (m)", Kind: KindNumber, Min: 1.40, Max: 2.10, Step: 0.01, Default: 1.70},
			{Name: observation.ColWeight, Label: "Peso (kg)", Kind: KindNumber, Min: 30, Max: 200, Step: 0.1, Default: 70},
			selectField(observation.ColFamilyHistory, "Histórico familiar de obesidade?", observation.YesNoChoices),
			selectField(observation.ColFAVC, "Consome alimentos altamente calóricos?", observation.YesNoChoices),
			{Name: observation.ColFCVC, Label: "Consumo de vegetais", Kind: KindSlider, Min: 1, Max: 3, Step: 1, Default: 2},
			{Name: observation.ColNCP, Label: "Número de refeições", Kind: KindSlider, Min: 1, Max: 4, Step: 1, Default: 3},
			selectField(observation.ColCAEC, "Come entre refeições?", observation.FrequencyChoices),
			selectField(observation.ColSMOKE, "Fuma?", observation.YesNoChoices),
			{Name: observation.ColCH2O, Label: "Consumo de água", Kind: KindSlider, Min: 1, Max: 3, Step: 1, Default: 2},
			selectField(observation.ColSCC, "Monitora calorias?", observation.YesNoChoices),
			{Name: observation.ColFAF, Label: "Atividade física", Kind: KindSlider, Min: 0, Max: 3, Step: 1, Default: 1},
			{Name: observation.ColTUE, Label: "Tempo em eletrônicos", Kind: KindSlider, Min: 0, Max: 2, Step: 1, Default: 1},
			selectField(observation.ColCALC, "Consumo de álcool", observation.FrequencyChoices),
			selectField(observation.ColMTRANS, "Meio de transporte", observation.TransportChoices),
		},
	}
}

// LoadDefinition reads a YAML form definition. Unset texts fall back to the
// default definition; the field list must cover every form column once.
func LoadDefinition(path string) (Definition, error) {
	if path == "" {
		return DefaultDefinition(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Definition{}, err
	}

	var def Definition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return Definition{}, fmt.Errorf("parse form definition: %w", err)
	}
	if len(def.Fields) == 0 {
		return Definition{}, errors.New("no form fields configured")
	}
	def.fillTexts(DefaultDefinition())
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (d *Definition) fillTexts(defaults Definition) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&d.Title, defaults.Title)
	fill(&d.Icon, defaults.Icon)
	fill(&d.Intro, defaults.Intro)
	fill(&d.Header, defaults.Header)
	fill(&d.SubmitLabel, defaults.SubmitLabel)
	fill(&d.ResultPrefix, defaults.ResultPrefix)
	fill(&d.ErrorPrefix, defaults.ErrorPrefix)
	fill(&d.Disclaimer, defaults.Disclaimer)
}

func (d Definition) Validate() error {
	expected := make(map[string]bool)
	for _, col := range observation.DefaultSchema(false).Columns {
		expected[col] = false
	}
	for _, f := range d.Fields {
		seen, ok := expected[f.Name]
		if !ok {
			return fmt.Errorf("field %q is not a form column", f.Name)
		}
		if seen {
			return fmt.Errorf("field %q defined twice", f.Name)
		}
		expected[f.Name] = true

		switch f.Kind {
		case KindSelect:
			if !observation.IsCategorical(f.Name) {
				return fmt.Errorf("field %q is numeric and cannot be a select", f.Name)
			}
			if len(f.Choices) == 0 {
				return fmt.Errorf("select %q has no choices", f.Name)
			}
		case KindNumber, KindSlider:
			if observation.IsCategorical(f.Name) {
				return fmt.Errorf("field %q is categorical and needs a select", f.Name)
			}
			if f.Min > f.Max {
				return fmt.Errorf("field %q has min above max", f.Name)
			}
			if f.Default < f.Min || f.Default > f.Max {
				return fmt.Errorf("field %q default outside [%v, %v]", f.Name, f.Min, f.Max)
			}
		default:
			return fmt.Errorf("field %q has unknown kind %q", f.Name, f.Kind)
		}
	}
	for col, seen := range expected {
		if !seen {
			return fmt.Errorf("form is missing field %q", col)
		}
	}
	return nil
}
