// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

type htmlData struct {
	Subject    string
	Paragraphs [][]string
}

// HTMLFromText renders a plain-text notification as a simple HTML email.
// Blank lines separate paragraphs; single newlines become line breaks.
func HTMLFromText(subject, body string) string {
	data := htmlData{Subject: subject}
	for _, para := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		data.Paragraphs = append(data.Paragraphs, strings.Split(para, "\n"))
	}

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

var htmlTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Subject}}</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #b45309; margin-top: 0;">{{.Subject}}</h2>
{{range .Paragraphs}}<p>{{range $i, $line := .}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
{{end}}</body>
</html>`))
