package spec

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func schemaFrom(t *testing.T, src string) *Schema {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(src), &n); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return NewSchema("S", n.Content[0])
}

func TestSchema_MarshalJSONKeepsOrder(t *testing.T) {
	t.Parallel()
	s := schemaFrom(t, `
type: object
required: [zeta]
properties:
  zeta: {type: string, description: "last \"quoted\""}
  alpha: {type: integer, minimum: 1, default: 0.5}
  flag: {type: boolean, default: yes, nullable: true}
  empty: ~
  code: {type: string, example: "0012"}
`)
	got, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"object","required":["zeta"],"properties":{"zeta":{"type":"string","description":"last \"quoted\""},` +
		`"alpha":{"type":"integer","minimum":1,"default":0.5},"flag":{"type":"boolean","default":"yes","nullable":true},` +
		`"empty":null,"code":{"type":"string","example":"0012"}}}`
	if string(got) != want {
		t.Fatalf("json mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSchema_MarshalJSONLargeIntegers(t *testing.T) {
	t.Parallel()
	s := schemaFrom(t, `
type: integer
maximum: 18446744073709551615
minimum: !!int -99999999999999999999
multipleOf: 0x_FFFF_FFFF_FFFF_FFFF
`)
	got, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"integer","maximum":18446744073709551615,"minimum":-99999999999999999999,"multipleOf":18446744073709551615}`
	if string(got) != want {
		t.Fatalf("json mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSchema_IndentedJSON(t *testing.T) {
	t.Parallel()
	got, err := schemaFrom(t, "type: string\nenum: [a, b]\n").IndentedJSON()
	if err != nil {
		t.Fatalf("indent: %v", err)
	}
	want := "{\n  \"type\": \"string\",\n  \"enum\": [\n    \"a\",\n    \"b\"\n  ]\n}"
	if string(got) != want {
		t.Fatalf("indented json mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSchema_Accessors(t *testing.T) {
	t.Parallel()
	s := schemaFrom(t, `
type: [string, "null"]
description: A value
properties:
  owner: {$ref: '#/components/schemas/User', description: Owner}
  count: {type: integer}
`)
	if s.Type() != "string|null" {
		t.Fatalf("type = %q", s.Type())
	}
	if s.Description() != "A value" {
		t.Fatalf("description = %q", s.Description())
	}
	props := s.Properties()
	if len(props) != 2 {
		t.Fatalf("properties = %+v", props)
	}
	if props[0] != (Property{Name: "owner", Description: "Owner", Ref: "#/components/schemas/User"}) {
		t.Fatalf("owner = %+v", props[0])
	}
	if props[1] != (Property{Name: "count", Type: "integer"}) {
		t.Fatalf("count = %+v", props[1])
	}
}

func TestSchema_AliasesAreFollowed(t *testing.T) {
	t.Parallel()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte("base: &b {type: string}\nuse: *b\n"), &n); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	s := NewSchema("", lookup(n.Content[0], "use"))
	if s.Type() != "string" {
		t.Fatalf("alias not followed: %q", s.Type())
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"get", "post", "put", "delete", "patch", "head", "options", "trace"} {
		if _, ok := ParseMethod(key); !ok {
			t.Errorf("ParseMethod(%q) rejected", key)
		}
	}
	for _, key := range []string{"parameters", "summary", "x-extra", "GET"} {
		if _, ok := ParseMethod(key); ok {
			t.Errorf("ParseMethod(%q) accepted", key)
		}
	}
}
