package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaSet holds the component schemas written by the generator, compiled
// once with their cross references resolved.
type SchemaSet struct {
	schemas map[string]*openapi3.Schema
}

// LoadSchemaDir compiles every <Name>.json file in dir.
func LoadSchemaDir(dir string) (*SchemaSet, error) {
	return LoadSchemaFS(os.DirFS(dir))
}

// LoadSchemaFS compiles every *.json file at the root of fsys.
func LoadSchemaFS(fsys fs.FS) (*SchemaSet, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	raw := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		raw[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return NewSchemaSet(raw)
}

// NewSchemaSet compiles schemas given as name to JSON text. References of the
// form #/components/schemas/<Name> are resolved within the set.
func NewSchemaSet(raw map[string][]byte) (*SchemaSet, error) {
	components := make(map[string]any, len(raw))
	for name, data := range raw {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		components[name] = normalizeSchema(v)
	}
	doc := map[string]any{
		"openapi":    "3.0.3",
		"info":       map[string]any{"title": "schemas", "version": "0"},
		"paths":      map[string]any{},
		"components": map[string]any{"schemas": components},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	loader := openapi3.NewLoader()
	loader.Context = context.Background()
	t, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}
	set := &SchemaSet{schemas: make(map[string]*openapi3.Schema, len(t.Components.Schemas))}
	for name, ref := range t.Components.Schemas {
		if ref != nil && ref.Value != nil {
			set.schemas[name] = ref.Value
		}
	}
	return set, nil
}

// Schema returns the compiled schema called name.
func (s *SchemaSet) Schema(name string) (*openapi3.Schema, bool) {
	sch, ok := s.schemas[name]
	return sch, ok
}

// Names lists the schemas in the set, sorted.
func (s *SchemaSet) Names() []string {
	names := make([]string, 0, len(s.schemas))
	for n := range s.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate implements ResponseValidator. Every violation is reported.
func (s *SchemaSet) Validate(schemaName string, instance any) error {
	sch, ok := s.schemas[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	v, err := toJSONValue(instance)
	if err != nil {
		return err
	}
	err = sch.VisitJSON(v, openapi3.MultiErrors())
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		return errors.Join(multi...)
	}
	return err
}

// toJSONValue converts typed Go values, including ints nested in maps, into
// the generic form VisitJSON expects.
func toJSONValue(instance any) (any, error) {
	switch instance.(type) {
	case nil, bool, float64, string:
		return instance, nil
	}
	data, err := json.Marshal(instance)
	if err != nil {
		return nil, fmt.Errorf("encode instance: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeSchema rewrites OpenAPI 3.1 keyword forms, such as
// "type": ["string", "null"], into the 3.0 forms the openapi3 model holds.
func normalizeSchema(v any) any {
	n, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for _, key := range []string{"items", "not", "additionalProperties"} {
		if child, ok := n[key]; ok {
			n[key] = normalizeSchema(child)
		}
	}
	for _, key := range []string{"allOf", "oneOf", "anyOf"} {
		list, ok := n[key].([]any)
		if !ok {
			continue
		}
		kept := list[:0]
		for _, child := range list {
			child = normalizeSchema(child)
			if key != "allOf" && isNullOnly(child) {
				n["nullable"] = true
				continue
			}
			kept = append(kept, child)
		}
		n[key] = kept
	}
	if props, ok := n["properties"].(map[string]any); ok {
		for name, child := range props {
			props[name] = normalizeSchema(child)
		}
	}

	if n["type"] == "null" {
		n["nullable"] = true
		delete(n, "type")
	}
	if types, ok := n["type"].([]any); ok {
		var kept []any
		for _, t := range types {
			if t == "null" {
				n["nullable"] = true
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 1 {
			n["type"] = kept[0]
		} else {
			delete(n, "type")
		}
	}
	for bound, limit := range map[string]string{"exclusiveMinimum": "minimum", "exclusiveMaximum": "maximum"} {
		if num, ok := n[bound].(float64); ok {
			n[limit] = num
			n[bound] = true
		}
	}
	if c, ok := n["const"]; ok {
		if _, hasEnum := n["enum"]; !hasEnum {
			n["enum"] = []any{c}
		}
		delete(n, "const")
	}
	return n
}

func isNullOnly(v any) bool {
	n, ok := v.(map[string]any)
	if !ok || len(n) != 1 {
		return false
	}
	return n["nullable"] == true
}
