package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

func loadFixture(t *testing.T) *genspec.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "inventory.yaml"))
	require.NoError(t, err)
	return parseDoc(t, string(data))
}

func parseDoc(t *testing.T, src string) *genspec.Document {
	t.Helper()
	doc, err := genspec.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return doc
}

func collect(gc *GenerationContext, f Filter) ([]*OperationDescriptor, []error) {
	var descs []*OperationDescriptor
	var errs []error
	for d, err := range Extract(gc, f) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, d)
	}
	return descs, errs
}

func names(descs []*OperationDescriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.FunctionName)
	}
	return out
}

// identity leaves generated source untouched so tests can assert exact text.
var identity = FormatterFunc(func(_ string, src []byte) ([]byte, error) { return src, nil })
