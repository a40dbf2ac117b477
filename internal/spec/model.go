package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// In-memory model of the parsed document. Every collection keeps the order of
// the source text so generated output is reproducible.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// ParseMethod reports whether key names an HTTP operation inside a path item.
func ParseMethod(key string) (HttpMethod, bool) {
	switch m := HttpMethod(key); m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE:
		return m, true
	}
	return "", false
}

// DefaultTag is assigned to operations that declare no tags.
const DefaultTag = "default"

// Document is the parsed specification. It is not mutated after Parse returns.
type Document struct {
	OpenAPI  string
	Title    string
	Version  string
	Location string
	Paths    []*PathItem
	Schemas  []*Schema

	schemaIndex map[string]*Schema
}

// Schema returns the component schema registered under name.
func (d *Document) Schema(name string) (*Schema, bool) {
	s, ok := d.schemaIndex[name]
	return s, ok
}

type PathItem struct {
	Path       string
	Parameters []Parameter
	Operations []*Operation
}

type Operation struct {
	Method      HttpMethod
	Path        string
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response
	// Pointer locates the operation inside the document, e.g. "#/paths/~1items/get".
	Pointer string
}

type Parameter struct {
	Name        string
	In          string // path|query|header|cookie
	Description string
	Required    bool
}

type RequestBody struct {
	Required  bool
	MediaType string
	Schema    *Schema
}

type Response struct {
	Status      string // 200, 4xx, default
	Description string
	MediaType   string
	Schema      *Schema
}

// Schema is a JSON-schema-like node. Component schemas carry their Name;
// inline schemas (media types, properties) have an empty Name.
type Schema struct {
	Name string
	node *yaml.Node
}

// Property is one entry of a schema's "properties" mapping.
type Property struct {
	Name        string
	Type        string
	Description string
	Ref         string
}

// NewSchema wraps a YAML node. Alias nodes are followed.
func NewSchema(name string, node *yaml.Node) *Schema {
	return &Schema{Name: name, node: deref(node)}
}

// Node exposes the underlying YAML node.
func (s *Schema) Node() *yaml.Node { return s.node }

// Ref returns the "$ref" value, or "" when the schema is not a reference.
func (s *Schema) Ref() string { return scalar(s.node, "$ref") }

// Type returns the declared "type". YAML lists of types are joined with "|".
func (s *Schema) Type() string {
	n := lookup(s.node, "type")
	if n == nil {
		return ""
	}
	if n.Kind == yaml.SequenceNode {
		var out string
		for i, item := range n.Content {
			if i > 0 {
				out += "|"
			}
			out += deref(item).Value
		}
		return out
	}
	return n.Value
}

func (s *Schema) Description() string { return scalar(s.node, "description") }

// Properties lists the "properties" entries in document order.
func (s *Schema) Properties() []Property {
	props := lookup(s.node, "properties")
	if props == nil || props.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]Property, 0, len(props.Content)/2)
	for i := 0; i+1 < len(props.Content); i += 2 {
		v := deref(props.Content[i+1])
		out = append(out, Property{
			Name:        props.Content[i].Value,
			Type:        scalar(v, "type"),
			Description: scalar(v, "description"),
			Ref:         scalar(v, "$ref"),
		})
	}
	return out
}

// MarshalJSON renders the schema with the key order of the source document.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, s.node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IndentedJSON renders the schema as 2-space indented JSON.
func (s *Schema) IndentedJSON() ([]byte, error) {
	compact, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *yaml.Node) error {
	n = deref(n)
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return encodeNode(buf, n.Content[0])
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		return encodeScalar(buf, n)
	default:
		return fmt.Errorf("spec: unsupported YAML node kind %d at line %d", n.Kind, n.Line)
	}
	return nil
}

func encodeScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(b))
		return nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
		// Beyond int64: keep it a JSON number.
		if bi, ok := new(big.Int).SetString(strings.ReplaceAll(n.Value, "_", ""), 0); ok {
			buf.WriteString(bi.String())
			return nil
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			raw, err := json.Marshal(f)
			if err != nil {
				return err
			}
			buf.Write(raw)
			return nil
		}
	}
	raw, err := json.Marshal(n.Value)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// lookup returns the value node for key in a mapping node.
func lookup(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func scalar(n *yaml.Node, key string) string {
	v := lookup(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}
