package generator

import (
	"io"
	"log/slog"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

// GenerationContext carries the mutable state of a single run: the seen-name
// set and the tag buckets. It is owned by Generate and is not safe for
// concurrent use.
type GenerationContext struct {
	Doc      *genspec.Document
	Resolver *genspec.Resolver
	Names    *NameResolver
	Buckets  *Aggregator
	Logger   *slog.Logger

	// Skipped lists "<METHOD> <path>" of operations dropped as duplicates.
	Skipped []string
}

func NewGenerationContext(doc *genspec.Document, logger *slog.Logger) *GenerationContext {
	if logger == nil {
		logger = discardLogger()
	}
	return &GenerationContext{
		Doc:      doc,
		Resolver: genspec.NewResolver(doc),
		Names:    NewNameResolver(),
		Buckets:  NewAggregator(),
		Logger:   logger,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
