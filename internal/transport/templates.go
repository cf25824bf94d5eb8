package transport

import (
	"html/template"

	"go-fieldfix/pkg/models"
)

const pageTemplates = `
{{define "header"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FieldFix</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #1d2a1d; }
label { display: block; margin-top: 1rem; font-weight: bold; }
input, select, textarea { width: 100%; padding: .4rem; }
button { margin-top: 1.5rem; padding: .6rem 1.2rem; }
.failure { border-left: 4px solid #b3261e; padding: .5rem 1rem; background: #fdecea; }
</style>
</head>
<body>
<h1>FieldFix</h1>
{{end}}

{{define "footer"}}</body>
</html>
{{end}}

{{define "index.html"}}{{template "header"}}
<p>Upload a photo and choose what to look for.</p>
<form method="post" action="/analyze" enctype="multipart/form-data">
<label for="image">Image</label>
<input id="image" type="file" name="image" accept="image/*" required>
<label for="category">Analysis</label>
<select id="category" name="category">
{{range .Categories}}<option value="{{.Name}}">{{.Name}}</option>
{{end}}</select>
<label for="subject">Crop, fruit, plant or location (optional)</label>
<input id="subject" type="text" name="subject">
<label for="context">Additional context (optional)</label>
<textarea id="context" name="context" rows="4"></textarea>
<button type="submit">Analyze</button>
</form>
{{template "footer"}}{{end}}

{{define "report.html"}}{{template "header"}}
<h2>{{.Category}} report{{if .Subject}}: {{.Subject}}{{end}}</h2>
{{if .Failed}}<div class="failure"><p><strong>{{.FailureKind}}</strong>: {{.Message}}</p></div>
{{else}}<article>{{.Report}}</article>
{{end}}<p><a href="/">Analyze another image</a></p>
{{template "footer"}}{{end}}
`

func parseTemplates() *template.Template {
	return template.Must(template.New("pages").Parse(pageTemplates))
}

type indexPage struct {
	Categories []models.CategoryInfo
}

type reportPage struct {
	Category    string
	Subject     string
	Report      template.HTML
	Failed      bool
	FailureKind string
	Message     string
}
