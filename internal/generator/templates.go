package generator

import "text/template"

var funcTmpl = template.Must(template.New("func").Parse(`func {{.GoName}}(ctx context.Context, c *apiclient.Client
{{- range .PathParams}}, {{.Ident}} string{{end}}
{{- if .QueryParams}}, query url.Values{{end}}
{{- if .HasBody}}, body any{{end}}) (*apiclient.Response, error) {
	u := {{printf "%q" .Path}}
{{- range .PathParams}}
	u = strings.ReplaceAll(u, {{printf "%q" (printf "{%s}" .Name)}}, {{.Ident}})
{{- end}}
{{- if .QueryParams}}
	if qs := query.Encode(); qs != "" {
		u += "?" + qs
	}
{{- end}}
{{- if and .HasBody .SendsBody}}
	if body == nil {
		body = map[string]any{}
	}
{{- end}}
	res, err := {{.Call}}
	if err != nil {
		return nil, err
	}
{{- if .ResponseSchemaName}}
	c.CheckResponse(ctx, {{printf "%q" .ResponseSchemaName}}, res)
{{- end}}
	return res, nil
}
`))

var payloadTmpl = template.Must(template.New("payload").Parse(`// {{.Name}} returns a sample {{.Schema}} payload for {{.Target}}.
// Keys in overrides replace generated fields.
func {{.Name}}(c *apiclient.Client, overrides map[string]any) (any, error) {
	return c.GeneratePayload({{printf "%q" .Schema}}, overrides)
}
`))

var moduleHeaderTmpl = template.Must(template.New("header").Parse(`// Code generated by spec2client. DO NOT EDIT.

// Package {{.Package}} contains API functions for the {{.Title}} tag{{if .API}} of {{.API}}{{end}}.
package {{.Package}}

import (
	"context"
{{- if .NeedsURL}}
	"net/url"
{{- end}}
{{- if .NeedsStrings}}
	"strings"
{{- end}}

	apiclient {{printf "%q" .RuntimeImport}}
)
`))
