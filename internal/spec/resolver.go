package spec

import (
	"fmt"
	"strings"
)

// SchemaRefPrefix is the only reference shape the Resolver accepts.
const SchemaRefPrefix = "#/components/schemas/"

// Resolver resolves "#/components/schemas/<Name>" references against one
// Document. Results are memoized; use one Resolver per generation run.
type Resolver struct {
	doc   *Document
	cache map[string]*Schema
}

func NewResolver(doc *Document) *Resolver {
	return &Resolver{doc: doc, cache: make(map[string]*Schema)}
}

// Resolve returns the component schema ref points at. Repeated calls for the
// same ref return the same *Schema.
func (r *Resolver) Resolve(ref string) (*Schema, error) {
	if s, ok := r.cache[ref]; ok {
		return s, nil
	}
	name, ok := SchemaName(ref)
	if !ok {
		return nil, r.unresolved(ref, "only #/components/schemas/<Name> references are supported")
	}
	s, ok := r.doc.Schema(name)
	if !ok {
		return nil, r.unresolved(ref, fmt.Sprintf("no schema named %q in components.schemas", name))
	}
	r.cache[ref] = s
	return s, nil
}

func (r *Resolver) unresolved(ref, detail string) error {
	return &SpecError{
		Code:     UnresolvedReference,
		Message:  fmt.Sprintf("spec: unresolved reference %q: %s", ref, detail),
		Location: r.doc.Location,
	}
}

// SchemaName extracts <Name> from a component schema reference.
func SchemaName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, SchemaRefPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, SchemaRefPrefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return unescapePointer(name), true
}
