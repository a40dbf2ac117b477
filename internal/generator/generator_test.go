package generator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func plannedPaths(res *Result) []string {
	out := make([]string, 0, len(res.Planned))
	for _, p := range res.Planned {
		out = append(out, p.RelPath)
	}
	return out
}

func TestGenerate_WritesModulesAndSchemas(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	res, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"api/admin/admin.go",
		"api/defaultapi/defaultapi.go",
		"api/items/items.go",
		"schemas/Item.json",
		"schemas/ItemCreate.json",
	}, plannedPaths(res))
	assert.Equal(t, 4, res.Functions)
	assert.Equal(t, 2, res.Schemas)
	assert.Equal(t, []string{"GET /widgets"}, res.Skipped)

	items := readFile(t, filepath.Join(out, "api", "items", "items.go"))
	assert.True(t, strings.HasPrefix(items, "// Code generated by spec2client. DO NOT EDIT.\n"))
	assert.Contains(t, items, "package items\n")
	assert.Contains(t, items, `"net/url"`)
	assert.Contains(t, items, `"strings"`)
	assert.Contains(t, items, `apiclient "github.com/mark3labs/spec2client/pkg/apiclient"`)

	// Functions appear in operation order, each followed by its payload generator.
	order := []string{"func CreateItem(", "func GenerateCreateItemPayload(", "func ListItems(", "func FetchItem("}
	last := -1
	for _, fn := range order {
		idx := strings.Index(items, fn)
		require.Greater(t, idx, last, fn)
		last = idx
	}
	assert.NotContains(t, items, "Delete_users_user_id")

	admin := readFile(t, filepath.Join(out, "api", "admin", "admin.go"))
	assert.Contains(t, admin, "func ListItems(")
	assert.NotContains(t, admin, `"strings"`)

	def := readFile(t, filepath.Join(out, "api", "defaultapi", "defaultapi.go"))
	assert.Contains(t, def, "func Delete_users_user_id(ctx context.Context, c *apiclient.Client, userId string)")
}

func TestGenerate_SchemaFilesKeepKeyOrder(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	_, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out})
	require.NoError(t, err)

	got := readFile(t, filepath.Join(out, "schemas", "ItemCreate.json"))
	assert.Equal(t, `{
  "type": "object",
  "required": [
    "name"
  ],
  "properties": {
    "name": {
      "type": "string",
      "description": "Item name"
    },
    "price": {
      "type": "number"
    }
  }
}
`, got)
}

func TestGenerate_IsReproducible(t *testing.T) {
	t.Parallel()
	a, b := t.TempDir(), t.TempDir()
	_, err := Generate(context.Background(), loadFixture(t), Options{OutDir: a})
	require.NoError(t, err)
	_, err = Generate(context.Background(), loadFixture(t), Options{OutDir: b})
	require.NoError(t, err)

	for _, rel := range []string{"api/items/items.go", "api/admin/admin.go", "api/defaultapi/defaultapi.go", "schemas/Item.json"} {
		assert.Equal(t, readFile(t, filepath.Join(a, rel)), readFile(t, filepath.Join(b, rel)), rel)
	}
}

func TestGenerate_RerunOverwrites(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	path := filepath.Join(out, "schemas", "Item.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	_, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out})
	require.NoError(t, err)
	assert.NotContains(t, readFile(t, path), "stale")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestGenerate_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "out")
	res, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Planned, 5)
	for _, p := range res.Planned {
		assert.Positive(t, p.Size, p.RelPath)
	}
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

const unresolvedSpec = `
openapi: 3.0.3
paths:
  /a:
    get:
      summary: Get A
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Missing'
  /b:
    get:
      summary: Get B
      responses: {}
components:
  schemas:
    B:
      type: string
`

func TestGenerate_UnresolvedReferenceAbortsBeforeWriting(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "out")
	_, err := Generate(context.Background(), parseDoc(t, unresolvedSpec), Options{OutDir: out})
	require.Error(t, err)
	assert.ErrorIs(t, err, genspec.ErrUnresolvedReference)

	var se *genspec.SpecError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#/paths/~1a/get/responses/200", se.JSONPointer)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no files may be written")
}

func TestGenerate_SkipInvalid(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	res, err := Generate(context.Background(), parseDoc(t, unresolvedSpec), Options{OutDir: out, SkipInvalid: true})
	require.NoError(t, err)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 1, res.Functions)

	def := readFile(t, filepath.Join(out, "api", "defaultapi", "defaultapi.go"))
	assert.Contains(t, def, "func GetB(")
	assert.NotContains(t, def, "func GetA(")
}

func TestGenerate_FormatterFailureFallsBack(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	out := t.TempDir()
	failing := FormatterFunc(func(string, []byte) ([]byte, error) { return nil, errors.New("boom") })

	_, err := Generate(context.Background(), loadFixture(t), Options{
		OutDir:    out,
		Formatter: failing,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)

	items := readFile(t, filepath.Join(out, "api", "items", "items.go"))
	assert.Contains(t, items, "func CreateItem(")
	assert.Contains(t, logs.String(), "formatting failed")
	assert.Contains(t, logs.String(), "updated file (unformatted)")
}

func TestGenerate_FormatterTimeoutFallsBack(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := FormatterFunc(func(_ string, src []byte) ([]byte, error) {
		<-release
		return src, nil
	})

	out := t.TempDir()
	_, err := Generate(context.Background(), loadFixture(t), Options{
		OutDir:        out,
		Formatter:     stuck,
		FormatTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(out, "api", "admin", "admin.go")), "func ListItems(")
}

func TestGenerate_WriteFailureKeepsSiblingFormatting(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	// A directory in place of items.go makes that module's rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(out, "api", "items", "items.go"), 0o755))

	slow := FormatterFunc(func(name string, src []byte) ([]byte, error) {
		if name == "admin.go" {
			time.Sleep(100 * time.Millisecond)
		}
		return append(src, "// formatted\n"...), nil
	})
	_, err := Generate(context.Background(), loadFixture(t), Options{
		OutDir:        out,
		Formatter:     slow,
		FormatTimeout: 5 * time.Second,
		Workers:       4,
	})
	require.Error(t, err)
	assert.Contains(t, readFile(t, filepath.Join(out, "api", "admin", "admin.go")), "// formatted\n")
}

func TestGenerate_FormatterPanicFallsBack(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	panicky := FormatterFunc(func(string, []byte) ([]byte, error) { panic("formatter bug") })
	_, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out, Formatter: panicky})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "api", "items", "items.go"))
}

func TestGenerate_IdentityFormatterMatchesRender(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	_, err := Generate(context.Background(), loadFixture(t), Options{OutDir: out, Formatter: identity})
	require.NoError(t, err)

	admin := readFile(t, filepath.Join(out, "api", "admin", "admin.go"))
	assert.Equal(t, `// Code generated by spec2client. DO NOT EDIT.

// Package admin contains API functions for the Admin tag of Inventory API.
package admin

import (
	"context"
	"net/url"

	apiclient "github.com/mark3labs/spec2client/pkg/apiclient"
)

// ListItems List Items
//
// GET /items
//
// Parameters:
//   - query (url.Values): Query parameters
//   - query.limit (string): Page size
//   - query.offset (string): Query parameter
//
// Responses:
//   - 200: OK
func ListItems(ctx context.Context, c *apiclient.Client, query url.Values) (*apiclient.Response, error) {
	u := "/items"
	if qs := query.Encode(); qs != "" {
		u += "?" + qs
	}
	res, err := c.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	return res, nil
}
`, admin)
}

func TestGenerate_CustomLayout(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	res, err := Generate(context.Background(), loadFixture(t), Options{
		OutDir:        out,
		SchemasDir:    "tests/schemas",
		APIDir:        "client",
		RuntimeImport: "example.com/runtime",
		ExcludeTags:   []string{"items", "default"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"client/widgets/widgets.go",
		"tests/schemas/Item.json",
		"tests/schemas/ItemCreate.json",
	}, plannedPaths(res))
	assert.Contains(t, readFile(t, filepath.Join(out, "client", "widgets", "widgets.go")), `apiclient "example.com/runtime"`)
}

func TestGenerate_RequiresOutDir(t *testing.T) {
	t.Parallel()
	_, err := Generate(context.Background(), loadFixture(t), Options{})
	assert.Error(t, err)
}

func TestGenerate_PayloadGeneratorNameCollision(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, `openapi: 3.0.3
info: {title: T, version: "1"}
paths:
  /items:
    post:
      summary: Create Item
      tags: [items]
      requestBody:
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Item'}
      responses:
        "200": {description: OK}
  /items/generate:
    post:
      summary: Generate Create Item Payload
      tags: [items]
      responses:
        "200": {description: OK}
components:
  schemas:
    Item: {type: object}
`)
	res, err := Generate(context.Background(), doc, Options{OutDir: t.TempDir(), DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"POST /items/generate"}, res.Skipped)

	require.Len(t, res.Modules, 1)
	var goNames []string
	for _, art := range res.Modules[0].Artifacts {
		goNames = append(goNames, art.GoName)
	}
	assert.Equal(t, []string{"CreateItem", "GenerateCreateItemPayload"}, goNames)
}

func TestGenerate_SchemaNameMustBeAFileStem(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, `openapi: 3.0.3
info: {title: T, version: "1"}
paths:
  /a:
    get:
      summary: Get A
      responses:
        "200":
          description: OK
          content:
            application/json:
              schema: {$ref: '#/components/schemas/a~1b'}
components:
  schemas:
    a/b: {type: object}
`)
	out := t.TempDir()
	_, err := Generate(context.Background(), doc, Options{OutDir: out})
	require.Error(t, err)
	assert.True(t, errors.Is(err, genspec.ErrMalformedSpec))

	var se *genspec.SpecError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "#/components/schemas/a~1b", se.JSONPointer)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSchemaFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Item.json", schemaFileName("Item"))
	assert.NoError(t, checkSchemaNames(&genspec.Document{Schemas: []*genspec.Schema{{Name: "Item"}, {Name: "Item.v2"}}}))
	for _, name := range []string{"", ".", "..", `a\b`} {
		assert.Error(t, checkSchemaNames(&genspec.Document{Schemas: []*genspec.Schema{{Name: name}}}), name)
	}
}
