package form

import (
	"html/template"
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>{{.Definition.Title}}</title>
	<style>
		body { font-family: Arial, sans-serif; max-width: 720px; margin: 40px auto; padding: 20px; background: #f7f7f7; color: #222; }
		h1 { text-align: center; }
		form { display: flex; flex-direction: column; gap: 10px; }
		label { font-weight: bold; }
		input, select { padding: 8px; font-size: 14px; border-radius: 8px; border: 1px solid #aaa; }
		input[type=range] { padding: 0; }
		button { padding: 10px; border: none; background: #007bff; color: white; font-weight: bold; border-radius: 8px; cursor: pointer; }
		button:hover { background: #0056b3; }
		.result { background: #e9f7ef; padding: 15px; margin-top: 20px; border-radius: 10px; }
		.error { background: #fdecea; padding: 15px; margin-top: 20px; border-radius: 10px; }
		.caption { font-size: 12px; color: #666; }
		table { border-collapse: collapse; width: 100%; }
		td { padding: 4px 0; }
	</style>
</head>
<body>
	<h1>{{.Definition.Icon}} {{.Definition.Title}}</h1>
	<p>{{.Definition.Intro}}</p>
	<h2>{{.Definition.Header}}</h2>
	<form action="/" method="POST">
	{{- range .Fields}}
		<label for="{{.Name}}">{{.Label}}</label>
		{{- if eq .Kind "select"}}
		<select id="{{.Name}}" name="{{.Name}}">
			{{- $current := .Current}}
			{{- range .Choices}}
			<option value="{{.}}"{{if eq . $current}} selected{{end}}>{{.}}</option>
			{{- end}}
		</select>
		{{- else if eq .Kind "slider"}}
		<input type="range" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Current}}" oninput="this.nextElementSibling.value = this.value">
		<output>{{.Current}}</output>
		{{- else}}
		<input type="number" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Current}}" required>
		{{- end}}
	{{- end}}
		<button type="submit">{{.Definition.SubmitLabel}}</button>
	</form>
	{{- with .Result}}
	<div class="result">
		<p>{{$.Definition.ResultPrefix}} <strong>{{.Label}}</strong> ({{.Classification}})</p>
		<p>IMC: {{printf "%.2f" .BMI}} ({{.BMICategory}})</p>
		<table>
		{{- range $.Probabilities}}
			<tr><td>{{.Class}}</td><td>{{printf "%.1f" .Percent}}%</td></tr>
		{{- end}}
		</table>
		<p class="caption">{{$.Definition.Disclaimer}}</p>
	</div>
	{{- end}}
	{{- if .Error}}
	<div class="error">{{.Definition.ErrorPrefix}} {{.Error}}</div>
	{{- end}}
</body>
</html>
`

// Page is the state of one rendering of the form.
type Page struct {
	Definition Definition
	Values     url.Values
	Result     *models.PredictionResult
	Error      string
}

type FieldView struct {
	Field
	Current string
}

// Fields pairs each widget with the submitted value, or its default.
func (p Page) Fields() []FieldView {
	views := make([]FieldView, 0, len(p.Definition.Fields))
	for _, f := range p.Definition.Fields {
		current := p.Values.Get(f.Name)
		if current == "" {
			if f.Kind == KindSelect {
				current = f.DefaultChoice
			} else {
				current = strconv.FormatFloat(f.Default, 'f', -1, 64)
			}
		}
		views = append(views, FieldView{Field: f, Current: current})
	}
	return views
}

type ClassProbability struct {
	Class   string
	Percent float64
}

// Probabilities lists the result's class probabilities, most likely first.
func (p Page) Probabilities() []ClassProbability {
	if p.Result == nil {
		return nil
	}
	out := make([]ClassProbability, 0, len(p.Result.Probabilities))
	for class, prob := range p.Result.Probabilities {
		out = append(out, ClassProbability{Class: class, Percent: prob * 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent == out[j].Percent {
			return out[i].Class < out[j].Class
		}
		return out[i].Percent > out[j].Percent
	})
	return out
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("index").Parse(pageTemplate))}
}

func (r *Renderer) Render(w io.Writer, page Page) error {
	return r.tmpl.Execute(w, page)
}
