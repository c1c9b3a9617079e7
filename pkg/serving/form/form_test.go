package form

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

func TestDefaultDefinitionIsValid(t *testing.T) {
	def := DefaultDefinition()
	if err := def.Validate(); err != nil {
		t.Fatalf("default definition invalid: %v", err)
	}
	if len(def.Fields) != 16 {
		t.Fatalf("expected 16 fields, got %d", len(def.Fields))
	}
}

func TestLoadDefinitionEmptyPath(t *testing.T) {
	def, err := LoadDefinition("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Title != DefaultDefinition().Title {
		t.Fatalf("expected default title, got %q", def.Title)
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}
	return path
}

func TestLoadDefinitionOverridesTexts(t *testing.T) {
	def := DefaultDefinition()
	var b strings.Builder
	b.WriteString("title: Obesity Risk Screening\nfields:\n")
	for _, f := range def.Fields {
		b.WriteString("  - name: " + f.Name + "\n    label: " + f.Name + "\n    kind: " + f.Kind + "\n")
		if f.Kind == KindSelect {
			b.WriteString("    choices: [" + strings.Join(f.Choices, ", ") + "]\n")
		} else {
			b.WriteString("    min: 0\n    max: 200\n    step: 1\n    default: 1\n")
		}
	}

	loaded, err := LoadDefinition(writeYAML(t, b.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Title != "Obesity Risk Screening" {
		t.Fatalf("unexpected title %q", loaded.Title)
	}
	if loaded.Disclaimer != def.Disclaimer {
		t.Fatal("expected unset texts to fall back to defaults")
	}
	if loaded.Fields[0].Label != "Gender" {
		t.Fatalf("unexpected label %q", loaded.Fields[0].Label)
	}
}

func TestLoadDefinitionRejectsIncompleteForms(t *testing.T) {
	cases := map[string]string{
		"no fields":     "title: x\n",
		"missing field": "fields:\n  - name: Gender\n    kind: select\n    choices: [Male, Female]\n",
		"unknown field": "fields:\n  - name: Waist\n    kind: number\n",
		"bad yaml":      "fields: [",
	}
	for name, content := range cases {
		if _, err := LoadDefinition(writeYAML(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsWrongKinds(t *testing.T) {
	def := DefaultDefinition()
	def.Fields[0].Kind = KindNumber // Gender
	if err := def.Validate(); err == nil {
		t.Fatal("expected categorical field as number to fail")
	}

	def = DefaultDefinition()
	def.Fields[1].Default = 5 // Age below its minimum
	if err := def.Validate(); err == nil {
		t.Fatal("expected default outside bounds to fail")
	}

	def = DefaultDefinition()
	def.Fields = append(def.Fields, def.Fields[0])
	if err := def.Validate(); err == nil {
		t.Fatal("expected duplicate field to fail")
	}
}

func TestRenderDefaults(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer().Render(&buf, Page{Definition: DefaultDefinition()}); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		"Sistema Preditivo de Obesidade",
		`name="MTRANS"`,
		`<option value="Public_Transportation">`,
		`name="Height" min="1.4" max="2.1" step="0.01" value="1.7"`,
		`type="range" id="FAF"`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in rendered page", want)
		}
	}
	if strings.Contains(html, `class="result"`) {
		t.Fatal("result block must not render without a result")
	}
}

func TestRenderResultAndSubmittedValues(t *testing.T) {
	values := url.Values{}
	values.Set("MTRANS", "Bike")
	values.Set("Weight", "95.5")
	page := Page{
		Definition: DefaultDefinition(),
		Values:     values,
		Result: &models.PredictionResult{
			Label:          "Obesity_Type_I",
			Classification: "Obesidade tipo I",
			BMI:            33.04,
			BMICategory:    "Obesidade grau I",
			Probabilities:  map[string]float64{"Obesity_Type_I": 0.7, "Overweight_Level_II": 0.3},
		},
	}
	var buf bytes.Buffer
	if err := NewRenderer().Render(&buf, page); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		`<option value="Bike" selected>`,
		`value="95.5"`,
		"<strong>Obesity_Type_I</strong> (Obesidade tipo I)",
		"IMC: 33.04",
		"70.0%",
		"não substitui avaliação médica",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in rendered page", want)
		}
	}
	if strings.Index(html, "Obesity_Type_I</td>") > strings.Index(html, "Overweight_Level_II</td>") {
		t.Fatal("expected probabilities sorted by likelihood")
	}
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	page := Page{Definition: DefaultDefinition(), Error: `found unknown category "x" in column "Gender" during transform`}
	if err := NewRenderer().Render(&buf, page); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Erro ao realizar a predição: found unknown category &#34;x&#34;") {
		t.Fatalf("expected escaped error message, got:\n%s", buf.String())
	}
}
