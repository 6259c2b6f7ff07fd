package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"inc":        func(i int) int { return i + 1 },
		"paragraphs": paragraphs,
	}

	templateContent, err := templateFS.ReadFile("templates/document.html")
	if err != nil {
		documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData feeds templates/document.html.
type TemplateData struct {
	Company       string
	Code          string
	Title         string
	Revision      int
	VersionNumber int
	EffectiveDate string
	GeneratedAt   string
	Sections      []Section
}

// RenderDocumentHTML renders the controlled-document layout.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func paragraphs(content string) []string {
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const fallbackTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Code}} {{.Title}}</title></head>
<body>
  <h1>{{.Company}} | {{.Title}}</h1>
  <p>{{.Code}} | Revisão {{.Revision}}</p>
  {{range $i, $s := .Sections}}<h2>{{inc $i}}. {{$s.Title}}</h2>{{range paragraphs $s.Content}}<p>{{.}}</p>{{end}}{{end}}
</body>
</html>`
