package apiclient

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/getkin/kin-openapi/openapi3"
)

// Faker implements PayloadGenerator over a SchemaSet. Optional properties
// are always filled. The same seed yields the same sequence of payloads.
type Faker struct {
	// MaxDepth bounds recursion through nested and self-referencing schemas.
	MaxDepth int

	set  *SchemaSet
	mu   sync.Mutex
	fake *gofakeit.Faker
}

func NewFaker(set *SchemaSet, seed uint64) *Faker {
	return &Faker{MaxDepth: 6, set: set, fake: gofakeit.New(seed)}
}

func (f *Faker) Generate(schemaName string) (any, error) {
	sch, ok := f.set.Schema(schemaName)
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value(sch, 0), nil
}

func (f *Faker) value(s *openapi3.Schema, depth int) any {
	if s == nil {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if len(s.Enum) > 0 {
		return s.Enum[f.fake.Number(0, len(s.Enum)-1)]
	}
	if len(s.AllOf) > 0 {
		return f.allOf(s, depth)
	}
	if alts := append(append(openapi3.SchemaRefs{}, s.OneOf...), s.AnyOf...); len(alts) > 0 {
		return f.value(alts[f.fake.Number(0, len(alts)-1)].Value, depth+1)
	}

	switch s.Type {
	case "object":
		return f.object(s, depth)
	case "array":
		return f.array(s, depth)
	case "string":
		return f.str(s)
	case "integer":
		lo, hi := bounds(s, 0, 1000)
		ilo, ihi := int(math.Ceil(lo)), int(math.Floor(hi))
		if ihi < ilo {
			ihi = ilo
		}
		return float64(f.fake.Number(ilo, ihi))
	case "number":
		lo, hi := bounds(s, 0, 1000)
		return f.fake.Float64Range(lo, hi)
	case "boolean":
		return f.fake.Bool()
	case "":
		if len(s.Properties) > 0 {
			return f.object(s, depth)
		}
		if s.Items != nil {
			return f.array(s, depth)
		}
	}
	return nil
}

func (f *Faker) object(s *openapi3.Schema, depth int) map[string]any {
	out := make(map[string]any, len(s.Properties))
	if depth >= f.MaxDepth {
		return out
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ref := s.Properties[name]; ref != nil {
			out[name] = f.value(ref.Value, depth+1)
		}
	}
	return out
}

func (f *Faker) allOf(s *openapi3.Schema, depth int) any {
	merged := f.object(s, depth)
	for _, part := range s.AllOf {
		v := f.value(part.Value, depth+1)
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for k, pv := range obj {
			merged[k] = pv
		}
	}
	return merged
}

func (f *Faker) array(s *openapi3.Schema, depth int) []any {
	if depth >= f.MaxDepth || s.Items == nil {
		return []any{}
	}
	lo := int(s.MinItems)
	hi := lo + 2
	if s.MaxItems != nil && int(*s.MaxItems) < hi {
		hi = int(*s.MaxItems)
	}
	if hi < lo {
		hi = lo
	}
	out := make([]any, f.fake.Number(lo, hi))
	for i := range out {
		out[i] = f.value(s.Items.Value, depth+1)
	}
	return out
}

func (f *Faker) str(s *openapi3.Schema) string {
	var v string
	switch s.Format {
	case "email":
		v = f.fake.Email()
	case "uuid":
		v = f.fake.UUID()
	case "date":
		v = f.fake.Date().Format(time.DateOnly)
	case "date-time":
		v = f.fake.Date().UTC().Format(time.RFC3339)
	case "uri", "url":
		v = f.fake.URL()
	case "ipv4":
		v = f.fake.IPv4Address()
	case "hostname":
		v = f.fake.DomainName()
	default:
		v = f.fake.Word()
	}
	if n := int(s.MinLength); len(v) < n {
		v += f.fake.LetterN(uint(n - len(v)))
	}
	if s.MaxLength != nil && uint64(len(v)) > *s.MaxLength {
		v = v[:*s.MaxLength]
	}
	return v
}

func bounds(s *openapi3.Schema, lo, hi float64) (float64, float64) {
	if s.Min != nil {
		lo = *s.Min
		if s.ExclusiveMin {
			lo++
		}
		if s.Max == nil {
			hi = lo + 1000
		}
	}
	if s.Max != nil {
		hi = *s.Max
		if s.ExclusiveMax {
			hi--
		}
		if s.Min == nil && hi < lo {
			lo = hi - 1000
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
