package generator

import (
	"bytes"
	"fmt"
	"strings"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

// FunctionArtifact is the rendered text of one generated function.
type FunctionArtifact struct {
	Name   string // run-unique function name, e.g. createItem
	GoName string
	Doc    string
	Body   string

	// Payload is the companion payload generator, present when the operation
	// has a named request body schema.
	Payload *FunctionArtifact

	usesURL     bool
	usesStrings bool
}

// Text is the doc comment followed by the function body.
func (a FunctionArtifact) Text() string { return a.Doc + a.Body }

// Emit renders an OperationDescriptor. The output depends only on the
// descriptor.
func Emit(desc *OperationDescriptor) (FunctionArtifact, error) {
	art := FunctionArtifact{
		Name:        desc.FunctionName,
		GoName:      desc.GoName,
		Doc:         renderDoc(desc),
		usesURL:     len(desc.QueryParams) > 0,
		usesStrings: len(desc.PathParams) > 0,
	}

	var buf bytes.Buffer
	data := struct {
		*OperationDescriptor
		SendsBody bool
		Call      string
	}{desc, sendsBody(desc.Method), callExpr(desc)}
	if err := funcTmpl.Execute(&buf, data); err != nil {
		return FunctionArtifact{}, fmt.Errorf("emit %s: %w", desc.FunctionName, err)
	}
	art.Body = buf.String()

	if desc.BodySchemaName != "" {
		name := payloadName(desc.FunctionName)
		payload := &FunctionArtifact{Name: name, GoName: GoName(name)}
		buf.Reset()
		err := payloadTmpl.Execute(&buf, struct{ Name, Schema, Target string }{payload.GoName, desc.BodySchemaName, desc.GoName})
		if err != nil {
			return FunctionArtifact{}, fmt.Errorf("emit %s: %w", name, err)
		}
		payload.Body = buf.String()
		art.Payload = payload
	}
	return art, nil
}

func sendsBody(m genspec.HttpMethod) bool {
	return m != genspec.GET && m != genspec.DELETE
}

func callExpr(desc *OperationDescriptor) string {
	body := "map[string]any{}"
	if desc.HasBody {
		body = "body"
	}
	switch desc.Method {
	case genspec.GET:
		return "c.Get(ctx, u)"
	case genspec.DELETE:
		return "c.Delete(ctx, u)"
	case genspec.POST:
		return "c.Post(ctx, u, " + body + ")"
	case genspec.PUT:
		return "c.Put(ctx, u, " + body + ")"
	case genspec.PATCH:
		return "c.Patch(ctx, u, " + body + ")"
	default:
		return fmt.Sprintf("c.Do(ctx, %q, u, %s)", strings.ToUpper(string(desc.Method)), body)
	}
}

func renderDoc(desc *OperationDescriptor) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString(strings.TrimRight("// "+fmt.Sprintf(format, args...), " "))
		b.WriteByte('\n')
	}

	title := oneLine(desc.Summary)
	if title == "" {
		title = strings.ToUpper(string(desc.Method)) + " " + desc.Path
	}
	line("%s %s", desc.GoName, title)
	line("")
	line("%s %s", strings.ToUpper(string(desc.Method)), desc.Path)

	if len(desc.PathParams) > 0 || len(desc.QueryParams) > 0 || desc.HasBody {
		line("")
		line("Parameters:")
	}
	for _, p := range desc.PathParams {
		line("  - %s (string): %s", p.Ident, orDefault(p.Description, "Path parameter"))
	}
	if len(desc.QueryParams) > 0 {
		line("  - query (url.Values): Query parameters")
		for _, p := range desc.QueryParams {
			line("  - query.%s (string): %s", p.Name, orDefault(p.Description, "Query parameter"))
		}
	}
	if desc.HasBody {
		if desc.BodySchemaName != "" {
			line("  - body (%s): The body of the request", desc.BodySchemaName)
		} else {
			line("  - body (object): The body of the request")
		}
		for _, p := range desc.BodyProperties {
			line("  - body.%s (%s): %s", p.Name, propertyType(p), oneLine(p.Description))
		}
	}

	if len(desc.Responses) > 0 {
		line("")
		line("Responses:")
		for _, r := range desc.Responses {
			line("  - %s: %s", r.Status, orDefault(r.Description, "API Response"))
		}
	}
	return b.String()
}

func propertyType(p genspec.Property) string {
	if p.Type != "" {
		return p.Type
	}
	if name, ok := genspec.SchemaName(p.Ref); ok {
		return name
	}
	return "unknown"
}

func orDefault(s, def string) string {
	if s = oneLine(s); s != "" {
		return s
	}
	return def
}

// oneLine collapses whitespace so text fits on a single comment line.
func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }
