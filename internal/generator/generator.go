// Package generator turns a parsed document into Go client packages, one per
// tag, and one JSON file per component schema.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

const (
	DefaultSchemasDir    = "schemas"
	DefaultAPIDir        = "api"
	DefaultRuntimeImport = "github.com/mark3labs/spec2client/pkg/apiclient"
	DefaultFormatTimeout = 10 * time.Second
)

// Options controls a generation run.
type Options struct {
	OutDir        string // required; schema and api directories are created below it
	SchemasDir    string // relative to OutDir; defaults to "schemas"
	APIDir        string // relative to OutDir; defaults to "api"
	RuntimeImport string // import path of the apiclient runtime used by generated code

	IncludeTags []string
	ExcludeTags []string

	// SkipInvalid logs and skips operations that cannot be described instead
	// of aborting the run.
	SkipInvalid bool

	Formatter     Formatter // defaults to GoImports{}
	FormatTimeout time.Duration
	Workers       int // concurrent module writes; defaults to GOMAXPROCS

	DryRun bool
	Logger *slog.Logger
}

// Result reports what a run produced.
type Result struct {
	Modules   []*ModuleDescriptor
	Functions int
	Schemas   int
	// Skipped lists "<METHOD> <path>" of operations dropped for a duplicate name.
	Skipped []string
	// Invalid holds the errors of operations dropped under SkipInvalid.
	Invalid []error
	Planned []PlannedFile
}

// Generate runs the whole pipeline. Every operation is described and emitted
// before the first file is written, so an aborted run leaves OutDir untouched.
func Generate(ctx context.Context, doc *genspec.Document, opts Options) (*Result, error) {
	if doc == nil {
		return nil, errors.New("generator: nil document")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, errors.New("generator: OutDir is required")
	}
	if err := checkSchemaNames(doc); err != nil {
		return nil, err
	}
	opts = withDefaults(opts)
	gc := NewGenerationContext(doc, opts.Logger)
	res := &Result{}

	var descs []*OperationDescriptor
	for desc, err := range Extract(gc, Filter{IncludeTags: opts.IncludeTags, ExcludeTags: opts.ExcludeTags}) {
		if err != nil {
			if !opts.SkipInvalid {
				return nil, err
			}
			gc.Logger.Warn("skipping invalid operation", "error", err)
			res.Invalid = append(res.Invalid, err)
			continue
		}
		descs = append(descs, desc)
	}

	for _, desc := range descs {
		art, err := Emit(desc)
		if err != nil {
			return nil, err
		}
		gc.Buckets.Add(desc.Tags, art)
	}
	res.Functions = len(descs)
	res.Skipped = gc.Skipped
	res.Modules = gc.Buckets.Modules()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &writer{
		outDir:        opts.OutDir,
		schemasDir:    opts.SchemasDir,
		apiDir:        opts.APIDir,
		runtimeImport: opts.RuntimeImport,
		apiTitle:      doc.Title,
		formatter:     opts.Formatter,
		formatTimeout: opts.FormatTimeout,
		workers:       opts.Workers,
		dryRun:        opts.DryRun,
		logger:        gc.Logger,
	}
	schemaFiles, err := w.writeSchemas(doc.Schemas)
	if err != nil {
		return nil, fmt.Errorf("write schemas: %w", err)
	}
	moduleFiles, err := w.writeModules(ctx, res.Modules)
	if err != nil {
		return nil, fmt.Errorf("write modules: %w", err)
	}
	res.Schemas = len(schemaFiles)
	res.Planned = append(schemaFiles, moduleFiles...)
	sortPlan(res.Planned)
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.SchemasDir == "" {
		opts.SchemasDir = DefaultSchemasDir
	}
	if opts.APIDir == "" {
		opts.APIDir = DefaultAPIDir
	}
	if opts.RuntimeImport == "" {
		opts.RuntimeImport = DefaultRuntimeImport
	}
	if opts.Formatter == nil {
		opts.Formatter = GoImports{}
	}
	if opts.FormatTimeout <= 0 {
		opts.FormatTimeout = DefaultFormatTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return opts
}
