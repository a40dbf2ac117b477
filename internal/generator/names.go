package generator

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameResolver derives function names and enforces run-wide uniqueness of
// both the function names and the exported identifiers emitted for them.
// The first operation to claim a name keeps it; later claimants are skipped.
type NameResolver struct {
	seen   map[string]struct{}
	idents map[string]struct{}
	lower  cases.Caser
}

func NewNameResolver() *NameResolver {
	return &NameResolver{
		seen:   make(map[string]struct{}),
		idents: make(map[string]struct{}),
		lower:  cases.Lower(language.Und),
	}
}

// Resolve returns the function name for an operation and true, or "" and
// false when the name, its Go identifier or, with withPayload, its payload
// generator identifier was already assigned earlier in the run.
func (n *NameResolver) Resolve(summary, method, path string, withPayload bool) (string, bool) {
	name := n.candidate(summary, method, path)
	idents := []string{GoName(name)}
	if withPayload {
		idents = append(idents, GoName(payloadName(name)))
	}
	if _, dup := n.seen[name]; dup {
		return "", false
	}
	for _, id := range idents {
		if _, dup := n.idents[id]; dup {
			return "", false
		}
	}
	n.seen[name] = struct{}{}
	for _, id := range idents {
		n.idents[id] = struct{}{}
	}
	return name, true
}

// Seen reports whether name has been assigned.
func (n *NameResolver) Seen(name string) bool {
	_, ok := n.seen[name]
	return ok
}

func (n *NameResolver) candidate(summary, method, path string) string {
	if name := camelCase(n.lower.String(summary)); name != "" {
		return name
	}
	return fallbackName(method, path)
}

// camelCase drops every run of non-alphanumeric characters and upper-cases
// the character that follows it. The first character is lower-cased.
func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		switch {
		case b.Len() == 0:
			r = unicode.ToLower(r)
		case upper:
			r = unicode.ToUpper(r)
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

// fallbackName is method followed by the path with "/" turned into "_" and
// braces removed: DELETE /users/{user_id} -> delete_users_user_id.
func fallbackName(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, r := range path {
		switch {
		case r == '{' || r == '}':
		case r == '/':
			b.WriteByte('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// payloadName is the companion payload generator of a function name.
func payloadName(name string) string {
	return "generate" + GoName(name) + "Payload"
}

// GoName turns a function name into an exported Go identifier.
func GoName(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	if unicode.IsDigit(runes[0]) {
		return "Op" + name
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// identifiers used by the generated function bodies.
var reservedIdents = map[string]struct{}{
	"ctx": {}, "c": {}, "u": {}, "query": {}, "body": {}, "res": {}, "err": {},
	"apiclient": {}, "context": {}, "strings": {}, "url": {},
}

// paramIdent returns a Go identifier for a path parameter, unique within used.
func paramIdent(name string, used map[string]struct{}) string {
	ident := camelCase(name)
	if ident == "" {
		ident = "param"
	} else if unicode.IsDigit([]rune(ident)[0]) {
		ident = "p" + ident
	}
	if _, reserved := reservedIdents[ident]; reserved || token.IsKeyword(ident) {
		ident += "Param"
	}
	base := ident
	for i := 2; ; i++ {
		if _, taken := used[ident]; !taken {
			break
		}
		ident = base + strconv.Itoa(i)
	}
	used[ident] = struct{}{}
	return ident
}

// packageName turns a tag into a Go package name.
func packageName(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tag) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "_")
	switch {
	case name == "":
		name = "tag"
	case name[0] >= '0' && name[0] <= '9':
		name = "tag" + name
	}
	if token.IsKeyword(name) {
		name += "api"
	}
	return name
}
