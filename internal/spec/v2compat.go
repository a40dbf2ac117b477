package spec

import (
	"encoding/json"
	"strconv"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

func isSwagger2(root *yaml.Node) bool {
	return strings.HasPrefix(strings.TrimSpace(scalar(root, "swagger")), "2.")
}

// convertV2ToV3 converts a Swagger 2.0 document with kin-openapi. The
// converter works on maps, so the result no longer carries source key order.
func convertV2ToV3(root *yaml.Node) (*openapi3.T, error) {
	normalizeV2Bodies(root)
	data, err := NewSchema("", root).MarshalJSON()
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// normalizeV2Bodies rewrites operations the converter rejects. Several
// "in: body" parameters are merged into one object body. Body parameters
// mixed with formData become formData fields and the operation consumes
// multipart/form-data. It reports whether anything changed.
func normalizeV2Bodies(root *yaml.Node) bool {
	paths := lookup(root, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return false
	}
	changed := false
	for i := 1; i < len(paths.Content); i += 2 {
		item := deref(paths.Content[i])
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			if _, ok := ParseMethod(strings.ToLower(item.Content[j].Value)); !ok {
				continue
			}
			if normalizeV2Operation(deref(item.Content[j+1])) {
				changed = true
			}
		}
	}
	return changed
}

func normalizeV2Operation(op *yaml.Node) bool {
	params := lookup(op, "parameters")
	if params == nil || params.Kind != yaml.SequenceNode {
		return false
	}
	var bodies []*yaml.Node
	hasForm := false
	for _, p := range params.Content {
		switch strings.ToLower(scalar(p, "in")) {
		case "body":
			bodies = append(bodies, deref(p))
		case "formdata":
			hasForm = true
		}
	}

	switch {
	case len(bodies) > 0 && hasForm:
		for i, p := range params.Content {
			if isBodyParam(p) {
				params.Content[i] = formDataParam(deref(p))
			}
		}
		ensureConsumes(op, "multipart/form-data")
		return true
	case len(bodies) > 1:
		kept := []*yaml.Node{mergedBodyParam(bodies)}
		for _, p := range params.Content {
			if !isBodyParam(p) {
				kept = append(kept, p)
			}
		}
		params.Content = kept
		return true
	}
	return false
}

func isBodyParam(p *yaml.Node) bool { return strings.EqualFold(scalar(p, "in"), "body") }

func mergedBodyParam(bodies []*yaml.Node) *yaml.Node {
	props := mapNode()
	required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, p := range bodies {
		name := paramName(p)
		setKey(props, name, paramSchema(p))
		if scalar(p, "required") == "true" {
			required.Content = append(required.Content, strNode(name))
		}
	}
	schema := mapNode("type", "object", "properties", props)
	if len(required.Content) > 0 {
		setKey(schema, "required", required)
	}
	return mapNode("in", "body", "name", "body", "schema", schema)
}

// paramSchema is the body schema of p, or one synthesized from its
// type/items/format, defaulting to a string.
func paramSchema(p *yaml.Node) *yaml.Node {
	if s := lookup(p, "schema"); s != nil && s.Kind == yaml.MappingNode {
		return s
	}
	t := scalar(p, "type")
	if t == "" {
		return mapNode("type", "string")
	}
	s := mapNode("type", t)
	if items := lookup(p, "items"); items != nil {
		setKey(s, "items", items)
	}
	if f := scalar(p, "format"); f != "" {
		setKey(s, "format", strNode(f))
	}
	return s
}

func formDataParam(p *yaml.Node) *yaml.Node {
	out := mapNode("in", "formData", "name", paramName(p))
	if d := scalar(p, "description"); d != "" {
		setKey(out, "description", strNode(d))
	}
	if r := scalar(p, "required"); r != "" {
		b, _ := strconv.ParseBool(r)
		setKey(out, "required", boolNode(b))
	}

	src := lookup(p, "schema")
	if src == nil {
		src = p
	}
	typ := scalar(src, "type")
	if typ == "" {
		// A referenced object has no formData representation.
		typ = "string"
	}
	setKey(out, "type", strNode(typ))
	if items := lookup(src, "items"); items != nil {
		setKey(out, "items", items)
	}
	if f := scalar(src, "format"); f != "" {
		setKey(out, "format", strNode(f))
	}
	return out
}

func ensureConsumes(op *yaml.Node, mediaType string) {
	consumes := lookup(op, "consumes")
	if consumes == nil || consumes.Kind != yaml.SequenceNode {
		consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setKey(op, "consumes", consumes)
	}
	for _, c := range consumes.Content {
		if c.Value == mediaType {
			return
		}
	}
	consumes.Content = append(consumes.Content, strNode(mediaType))
}

func paramName(p *yaml.Node) string {
	if n := strings.TrimSpace(scalar(p, "name")); n != "" {
		return n
	}
	return "field"
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

// mapNode builds a mapping from alternating keys and values. Values are
// *yaml.Node or string.
func mapNode(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		v, ok := kv[i+1].(*yaml.Node)
		if !ok {
			v = strNode(kv[i+1].(string))
		}
		n.Content = append(n.Content, strNode(kv[i].(string)), v)
	}
	return n
}

// setKey replaces the value of key in mapping m, or appends the pair.
func setKey(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, strNode(key), v)
}
