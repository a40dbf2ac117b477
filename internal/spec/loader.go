package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Settings configures loader and fetcher behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request made by Fetch.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// Strict runs the kin-openapi validator over the document before it is
	// accepted. Off by default: generation only needs the minimal structure.
	Strict bool
	// Location is reported in errors and recorded on the Document.
	Location string
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option             { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option  { return func(s *Settings) { s.BackoffBase = d } }
func WithStrictValidation(strict bool) Option { return func(s *Settings) { s.Strict = strict } }
func WithLocation(location string) Option     { return func(s *Settings) { s.Location = location } }

// LoadFile reads a local YAML or JSON document and parses it.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return Parse(ctx, raw, append([]Option{WithLocation(abs)}, opts...)...)
}

// Parse turns YAML or JSON text into a Document. Swagger 2.0 input is
// converted to OpenAPI 3 with kin-openapi first.
//
// Parse fails with a MalformedSpec SpecError when the text does not parse,
// is not a mapping, or has no "paths" mapping.
func Parse(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	loc := settings.Location

	root, err := parseRoot(data, loc)
	if err != nil {
		return nil, err
	}

	if isSwagger2(root) {
		v3doc, err := convertV2ToV3(root)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: loc, Cause: err}
		}
		if data, err = json.Marshal(v3doc); err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("encode converted document: %v", err), Location: loc, Cause: err}
		}
		if root, err = parseRoot(data, loc); err != nil {
			return nil, err
		}
	}

	if settings.Strict {
		if err := validateStrict(ctx, data, loc); err != nil {
			return nil, err
		}
	}

	return buildDocument(root, loc)
}

func parseRoot(data []byte, loc string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, malformed(loc, "", fmt.Sprintf("parse: %v", err), err)
	}
	root := deref(&doc)
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, malformed(loc, "", "document is empty", nil)
		}
		root = deref(root.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return nil, malformed(loc, "#", "document root is not a mapping", nil)
	}
	return root, nil
}

func validateStrict(ctx context.Context, data []byte, loc string) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return mapValidateOrParseErr(err, loc)
	}
	if err := doc.Validate(ctx); err != nil && !canProceedDespiteValidation(err) {
		return mapValidateOrParseErr(err, loc)
	}
	return nil
}

type builder struct {
	root *yaml.Node
	loc  string
}

func buildDocument(root *yaml.Node, loc string) (*Document, error) {
	b := &builder{root: root, loc: loc}
	info := lookup(root, "info")
	doc := &Document{
		OpenAPI:     scalar(root, "openapi"),
		Title:       strings.TrimSpace(scalar(info, "title")),
		Version:     strings.TrimSpace(scalar(info, "version")),
		Location:    loc,
		schemaIndex: map[string]*Schema{},
	}

	if schemas := lookup(lookup(root, "components"), "schemas"); schemas != nil {
		if schemas.Kind != yaml.MappingNode {
			return nil, malformed(loc, "#/components/schemas", "components.schemas is not a mapping", nil)
		}
		for i := 0; i+1 < len(schemas.Content); i += 2 {
			s := NewSchema(schemas.Content[i].Value, schemas.Content[i+1])
			doc.Schemas = append(doc.Schemas, s)
			doc.schemaIndex[s.Name] = s
		}
	}

	paths := lookup(root, "paths")
	if paths == nil {
		return nil, malformed(loc, "#", "missing mandatory 'paths' key", nil)
	}
	if paths.Kind != yaml.MappingNode {
		// "paths: {}" is a mapping; a bare "paths:" decodes as null.
		if paths.ShortTag() == "!!null" {
			return doc, nil
		}
		return nil, malformed(loc, "#/paths", "'paths' is not a mapping", nil)
	}
	for i := 0; i+1 < len(paths.Content); i += 2 {
		item, err := b.pathItem(paths.Content[i].Value, deref(paths.Content[i+1]))
		if err != nil {
			return nil, err
		}
		doc.Paths = append(doc.Paths, item)
	}
	return doc, nil
}

func (b *builder) pathItem(path string, node *yaml.Node) (*PathItem, error) {
	ptr := "#/paths/" + escapePointer(path)
	if node.Kind != yaml.MappingNode {
		return nil, malformed(b.loc, ptr, fmt.Sprintf("path item %q is not a mapping", path), nil)
	}
	item := &PathItem{Path: path}
	params, err := b.parameters(lookup(node, "parameters"), ptr+"/parameters")
	if err != nil {
		return nil, err
	}
	item.Parameters = params

	for i := 0; i+1 < len(node.Content); i += 2 {
		method, ok := ParseMethod(strings.ToLower(node.Content[i].Value))
		if !ok {
			continue
		}
		op, err := b.operation(method, path, deref(node.Content[i+1]), ptr+"/"+string(method))
		if err != nil {
			return nil, err
		}
		item.Operations = append(item.Operations, op)
	}
	return item, nil
}

func (b *builder) operation(method HttpMethod, path string, node *yaml.Node, ptr string) (*Operation, error) {
	if node.Kind != yaml.MappingNode {
		return nil, malformed(b.loc, ptr, "operation is not a mapping", nil)
	}
	op := &Operation{
		Method:      method,
		Path:        path,
		OperationID: strings.TrimSpace(scalar(node, "operationId")),
		Summary:     strings.TrimSpace(scalar(node, "summary")),
		Description: strings.TrimSpace(scalar(node, "description")),
		Pointer:     ptr,
	}

	if tags := lookup(node, "tags"); tags != nil && tags.Kind == yaml.SequenceNode {
		for _, t := range tags.Content {
			if v := strings.TrimSpace(deref(t).Value); v != "" {
				op.Tags = append(op.Tags, v)
			}
		}
	}
	if len(op.Tags) == 0 {
		op.Tags = []string{DefaultTag}
	}

	params, err := b.parameters(lookup(node, "parameters"), ptr+"/parameters")
	if err != nil {
		return nil, err
	}
	op.Parameters = params

	if rb := lookup(node, "requestBody"); rb != nil {
		rb, err = b.component(rb, "requestBodies", ptr+"/requestBody")
		if err != nil {
			return nil, err
		}
		mime, schema := mediaSchema(lookup(rb, "content"))
		op.RequestBody = &RequestBody{
			Required:  scalar(rb, "required") == "true",
			MediaType: mime,
			Schema:    schema,
		}
	}

	if responses := lookup(node, "responses"); responses != nil && responses.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(responses.Content); i += 2 {
			status := responses.Content[i].Value
			rn, err := b.component(responses.Content[i+1], "responses", ptr+"/responses/"+escapePointer(status))
			if err != nil {
				return nil, err
			}
			mime, schema := mediaSchema(lookup(rn, "content"))
			op.Responses = append(op.Responses, Response{
				Status:      status,
				Description: strings.TrimSpace(scalar(rn, "description")),
				MediaType:   mime,
				Schema:      schema,
			})
		}
	}
	return op, nil
}

func (b *builder) parameters(list *yaml.Node, ptr string) ([]Parameter, error) {
	if list == nil || list.Kind != yaml.SequenceNode {
		return nil, nil
	}
	out := make([]Parameter, 0, len(list.Content))
	for i, raw := range list.Content {
		pn, err := b.component(raw, "parameters", fmt.Sprintf("%s/%d", ptr, i))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(scalar(pn, "name"))
		if name == "" {
			continue
		}
		out = append(out, Parameter{
			Name:        name,
			In:          strings.TrimSpace(scalar(pn, "in")),
			Description: strings.TrimSpace(scalar(pn, "description")),
			Required:    scalar(pn, "required") == "true",
		})
	}
	return out, nil
}

// component follows a local "#/components/<kind>/<Name>" reference for
// parameters, request bodies and responses. Other nodes are returned as is.
func (b *builder) component(node *yaml.Node, kind, ptr string) (*yaml.Node, error) {
	node = deref(node)
	ref := scalar(node, "$ref")
	if ref == "" {
		return node, nil
	}
	prefix := "#/components/" + kind + "/"
	if strings.HasPrefix(ref, prefix) {
		if target := lookup(lookup(lookup(b.root, "components"), kind), unescapePointer(strings.TrimPrefix(ref, prefix))); target != nil {
			return target, nil
		}
	}
	return nil, &SpecError{
		Code:        UnresolvedReference,
		Message:     fmt.Sprintf("spec: unresolved reference %q", ref),
		Location:    b.loc,
		JSONPointer: ptr,
	}
}

// mediaSchema picks application/json when present, else the first media type.
func mediaSchema(content *yaml.Node) (string, *Schema) {
	if content == nil || content.Kind != yaml.MappingNode || len(content.Content) < 2 {
		return "", nil
	}
	idx := 0
	for i := 0; i+1 < len(content.Content); i += 2 {
		if content.Content[i].Value == "application/json" {
			idx = i
			break
		}
	}
	schema := lookup(content.Content[idx+1], "schema")
	if schema == nil {
		return content.Content[idx].Value, nil
	}
	return content.Content[idx].Value, NewSchema("", schema)
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

func unescapePointer(s string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}

func mapValidateOrParseErr(err error, location string) error {
	// Try to extract JSON Pointer where available.
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	if strings.Contains(strings.ToLower(err.Error()), "parse") || strings.Contains(strings.ToLower(err.Error()), "invalid character") {
		code = MalformedSpec
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// Unwrap MultiError and take the first for brevity.
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		// v0.116 uses JSONPointer() []string
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	// Fallback: parse from error message if a pointer literal appears.
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for certain validation errors where
// generation can still proceed. Unresolved schema refs are reported later by
// the Resolver with the operation that uses them.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
