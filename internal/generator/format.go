package generator

import "golang.org/x/tools/imports"

// Formatter pretty-prints a generated module. A failing Formatter never
// aborts a run: the writer falls back to the unformatted text.
type Formatter interface {
	Format(filename string, src []byte) ([]byte, error)
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(filename string, src []byte) ([]byte, error)

func (f FormatterFunc) Format(filename string, src []byte) ([]byte, error) { return f(filename, src) }

// GoImports formats with gofmt rules. With FixImports it also adds missing
// and removes unused imports.
type GoImports struct {
	FixImports bool
}

func (g GoImports) Format(filename string, src []byte) ([]byte, error) {
	return imports.Process(filename, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: !g.FixImports,
	})
}
