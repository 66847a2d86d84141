package ai

import (
	"strings"
	"text/template"

	"github.com/muesli/reflow/truncate"
)

// Prompt inputs are capped so one oversized field cannot crowd out the instructions.
const (
	maxBriefWidth = 2000
	maxTextWidth  = 5000
	maxTitleWidth = 120
	maxDependents = 10
)

var prompts = template.Must(template.New("").Funcs(template.FuncMap{
	"brief": func(s string) string { return capText(s, maxBriefWidth) },
	"text":  func(s string) string { return capText(s, maxTextWidth) },
	"title": func(s string) string { return capText(s, maxTitleWidth) },
}).Parse(`
{{define "tasks"}}Break the following project brief into between 3 and 8 concrete tasks.
Brief:
{{brief .Brief}}

Respond with a JSON array only. Each element must be an object with the string fields "title" (at most 120 characters) and "description".
{{end}}

{{define "draft"}}Write a task for a Kanban board.
{{if .Title}}Working title: {{title .Title}}
{{end}}Context:
{{brief .Brief}}

Respond with a single JSON object with the string fields "title" (at most 120 characters) and "description".
{{end}}

{{define "rewrite-description"}}Rewrite the description of the task "{{title .Title}}" so it is clear, concise and actionable. Keep every fact, do not invent requirements.
Current description:
{{text .Text}}

Respond with a single JSON object with the string field "rewrittenText".
{{end}}

{{define "rewrite-comment"}}Rewrite the following comment on the task "{{title .Title}}" so it is polite, clear and professional. Keep its meaning.
Comment:
{{text .Text}}

Respond with a single JSON object with the string field "rewrittenText".
{{end}}

{{define "priority"}}Suggest a priority for the task "{{title .Title}}".
{{if .Description}}Description:
{{text .Description}}
{{end}}{{if .Dependents}}Tasks that depend on it:
{{range .Dependents}}- {{title .}}
{{end}}{{end}}
Respond with a single JSON object with the string fields "priority" (one of NONE, LOW, MEDIUM, HIGH) and "reasoning" (one or two sentences).
{{end}}`))

func capText(s string, width uint) string {
	return truncate.StringWithTail(strings.TrimSpace(s), width, "...")
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
