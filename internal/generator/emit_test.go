package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

func emitFixture(t *testing.T) map[string]FunctionArtifact {
	t.Helper()
	gc := NewGenerationContext(loadFixture(t), nil)
	descs, errs := collect(gc, Filter{})
	require.Empty(t, errs)
	out := map[string]FunctionArtifact{}
	for _, d := range descs {
		art, err := Emit(d)
		require.NoError(t, err)
		out[d.FunctionName] = art
	}
	return out
}

func TestEmit_CreateWithPayload(t *testing.T) {
	t.Parallel()
	art := emitFixture(t)["createItem"]

	assert.Equal(t, `// CreateItem Create Item
//
// POST /items
//
// Parameters:
//   - body (ItemCreate): The body of the request
//   - body.name (string): Item name
//   - body.price (number):
//
// Responses:
//   - 200: Created item
//   - 422: Validation Error
`, art.Doc)

	assert.Equal(t, `func CreateItem(ctx context.Context, c *apiclient.Client, body any) (*apiclient.Response, error) {
	u := "/items"
	if body == nil {
		body = map[string]any{}
	}
	res, err := c.Post(ctx, u, body)
	if err != nil {
		return nil, err
	}
	c.CheckResponse(ctx, "Item", res)
	return res, nil
}
`, art.Body)

	require.NotNil(t, art.Payload)
	assert.Equal(t, "generateCreateItemPayload", art.Payload.Name)
	assert.Contains(t, art.Payload.Body, "func GenerateCreateItemPayload(c *apiclient.Client, overrides map[string]any) (any, error) {")
	assert.Contains(t, art.Payload.Body, `return c.GeneratePayload("ItemCreate", overrides)`)
}

func TestEmit_PathParameterSubstitution(t *testing.T) {
	t.Parallel()
	art := emitFixture(t)["fetchItem"]

	assert.Contains(t, art.Body, "func FetchItem(ctx context.Context, c *apiclient.Client, itemId string) (*apiclient.Response, error) {")
	assert.Contains(t, art.Body, `u = strings.ReplaceAll(u, "{item_id}", itemId)`)
	assert.Contains(t, art.Body, "c.Get(ctx, u)")
	assert.Contains(t, art.Doc, "//   - itemId (string): Item identifier\n")
	assert.Contains(t, art.Doc, "//   - 404: Not found\n")
	assert.Nil(t, art.Payload)
}

func TestEmit_QueryParameters(t *testing.T) {
	t.Parallel()
	art := emitFixture(t)["listItems"]

	assert.Contains(t, art.Body, "query url.Values) (*apiclient.Response, error) {")
	assert.Contains(t, art.Body, "if qs := query.Encode(); qs != \"\" {\n\t\tu += \"?\" + qs\n\t}")
	assert.Contains(t, art.Doc, "//   - query.limit (string): Page size\n")
	assert.Contains(t, art.Doc, "//   - query.offset (string): Query parameter\n")
	assert.NotContains(t, art.Body, "CheckResponse")
}

func TestEmit_FallbackNameAndDelete(t *testing.T) {
	t.Parallel()
	art := emitFixture(t)["delete_users_user_id"]

	assert.True(t, strings.HasPrefix(art.Doc, "// Delete_users_user_id: DELETE /users/{user_id}\n"))
	assert.Contains(t, art.Body, "func Delete_users_user_id(ctx context.Context, c *apiclient.Client, userId string)")
	assert.Contains(t, art.Body, "c.Delete(ctx, u)")
	assert.Contains(t, art.Doc, "//   - userId (string): Path parameter\n")
}

func TestEmit_MethodCalls(t *testing.T) {
	tests := []struct {
		method  genspec.HttpMethod
		hasBody bool
		call    string
	}{
		{genspec.GET, false, "c.Get(ctx, u)"},
		{genspec.DELETE, true, "c.Delete(ctx, u)"},
		{genspec.PUT, true, "c.Put(ctx, u, body)"},
		{genspec.PATCH, false, "c.Patch(ctx, u, map[string]any{})"},
		{genspec.POST, false, "c.Post(ctx, u, map[string]any{})"},
		{genspec.HEAD, false, `c.Do(ctx, "HEAD", u, map[string]any{})`},
		{genspec.OPTIONS, true, `c.Do(ctx, "OPTIONS", u, body)`},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			art, err := Emit(&OperationDescriptor{
				FunctionName: "op", GoName: "Op", Method: tt.method, Path: "/x", HasBody: tt.hasBody,
			})
			require.NoError(t, err)
			assert.Contains(t, art.Body, "res, err := "+tt.call+"\n")
		})
	}
}

func TestEmit_IsDeterministic(t *testing.T) {
	t.Parallel()
	a := emitFixture(t)
	b := emitFixture(t)
	for name, art := range a {
		assert.Equal(t, art.Text(), b[name].Text(), name)
	}
}

func TestEmit_DocCollapsesWhitespace(t *testing.T) {
	t.Parallel()
	art, err := Emit(&OperationDescriptor{
		FunctionName: "op", GoName: "Op", Method: genspec.GET, Path: "/x",
		Summary:   "multi\nline   summary",
		Responses: []genspec.Response{{Status: "default"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(art.Doc, "// Op multi line summary\n"))
	assert.Contains(t, art.Doc, "//   - default: API Response\n")
}
