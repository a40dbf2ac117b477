package generator

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

// OperationDescriptor is everything the emitter needs to render one operation.
type OperationDescriptor struct {
	FunctionName       string
	GoName             string
	Method             genspec.HttpMethod
	Path               string
	Summary            string
	PathParams         []Param
	QueryParams        []Param
	HasBody            bool
	BodySchemaName     string
	BodyProperties     []genspec.Property
	ResponseSchemaName string
	Responses          []genspec.Response
	Tags               []string
}

// Param is a path or query parameter. Ident is the Go identifier used for
// path parameters in the generated signature.
type Param struct {
	Name        string
	Ident       string
	Description string
	Required    bool
}

// Filter restricts which operations take part in a run.
type Filter struct {
	IncludeTags []string
	ExcludeTags []string
}

var pathTokenRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Extract walks every (path, method) pair in document order. Operations whose
// name was already taken are logged and skipped. An operation that cannot be
// described (unresolved reference, undeclared path parameter) yields an error
// and the walk continues if the caller keeps ranging.
func Extract(gc *GenerationContext, filter Filter) iter.Seq2[*OperationDescriptor, error] {
	return func(yield func(*OperationDescriptor, error) bool) {
		for _, item := range gc.Doc.Paths {
			for _, op := range item.Operations {
				if !allowByTags(op.Tags, filter) {
					continue
				}
				name, ok := gc.Names.Resolve(op.Summary, string(op.Method), op.Path, hasPayload(op))
				if !ok {
					id := strings.ToUpper(string(op.Method)) + " " + op.Path
					gc.Skipped = append(gc.Skipped, id)
					gc.Logger.Info("skipping operation with duplicate function name",
						"operation", id, "name", gc.Names.candidate(op.Summary, string(op.Method), op.Path))
					continue
				}
				desc, err := describe(gc, item, op, name)
				if !yield(desc, err) {
					return
				}
			}
		}
	}
}

// hasPayload reports whether the operation gets a payload generator, that is
// whether its request body is a named schema.
func hasPayload(op *genspec.Operation) bool {
	rb := op.RequestBody
	return rb != nil && rb.Schema != nil && rb.Schema.Ref() != ""
}

func describe(gc *GenerationContext, item *genspec.PathItem, op *genspec.Operation, name string) (*OperationDescriptor, error) {
	desc := &OperationDescriptor{
		FunctionName: name,
		GoName:       GoName(name),
		Method:       op.Method,
		Path:         op.Path,
		Summary:      op.Summary,
		Responses:    op.Responses,
		Tags:         op.Tags,
	}

	used := make(map[string]struct{})
	for _, p := range mergeParameters(item.Parameters, op.Parameters) {
		param := Param{Name: p.Name, Description: p.Description, Required: p.Required}
		switch p.In {
		case "path":
			param.Ident = paramIdent(p.Name, used)
			desc.PathParams = append(desc.PathParams, param)
		case "query":
			desc.QueryParams = append(desc.QueryParams, param)
		}
	}

	for _, m := range pathTokenRe.FindAllStringSubmatch(op.Path, -1) {
		if !hasParam(desc.PathParams, m[1]) {
			return nil, &genspec.SpecError{
				Code:        genspec.MalformedSpec,
				Message:     fmt.Sprintf("spec: %s %s: path token %q has no declared path parameter", strings.ToUpper(string(op.Method)), op.Path, m[0]),
				Location:    gc.Doc.Location,
				JSONPointer: op.Pointer,
			}
		}
	}

	if rb := op.RequestBody; rb != nil {
		desc.HasBody = true
		if rb.Schema != nil {
			body := rb.Schema
			if ref := body.Ref(); ref != "" {
				resolved, err := gc.Resolver.Resolve(ref)
				if err != nil {
					return nil, withPointer(err, op.Pointer+"/requestBody")
				}
				body = resolved
				desc.BodySchemaName = resolved.Name
			}
			desc.BodyProperties = body.Properties()
		}
	}

	for _, r := range op.Responses {
		if r.Status != "200" || r.Schema == nil || r.Schema.Ref() == "" {
			continue
		}
		resolved, err := gc.Resolver.Resolve(r.Schema.Ref())
		if err != nil {
			return nil, withPointer(err, op.Pointer+"/responses/200")
		}
		desc.ResponseSchemaName = resolved.Name
	}
	return desc, nil
}

// mergeParameters applies operation-level parameters over path-level ones.
// An override keeps the position of the parameter it replaces.
func mergeParameters(base, overrides []genspec.Parameter) []genspec.Parameter {
	out := append([]genspec.Parameter(nil), base...)
	for _, p := range overrides {
		replaced := false
		for i := range out {
			if out[i].In == p.In && out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func withPointer(err error, pointer string) error {
	if se, ok := err.(*genspec.SpecError); ok && se.JSONPointer == "" {
		copied := *se
		copied.JSONPointer = pointer
		return &copied
	}
	return err
}

func allowByTags(tags []string, f Filter) bool {
	if len(f.IncludeTags) > 0 && !anyIn(tags, f.IncludeTags) {
		return false
	}
	return !anyIn(tags, f.ExcludeTags)
}

func anyIn(tags, set []string) bool {
	for _, t := range tags {
		for _, s := range set {
			if t == s {
				return true
			}
		}
	}
	return false
}
