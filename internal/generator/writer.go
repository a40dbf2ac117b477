package generator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	genspec "github.com/mark3labs/spec2client/internal/spec"
)

// PlannedFile describes a file the writer produces (or would produce in a dry run).
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

type writer struct {
	outDir        string
	schemasDir    string
	apiDir        string
	runtimeImport string
	apiTitle      string
	formatter     Formatter
	formatTimeout time.Duration
	workers       int
	dryRun        bool
	logger        *slog.Logger
}

// writeSchemas persists every component schema as ordered, 2-space indented JSON.
func (w *writer) writeSchemas(schemas []*genspec.Schema) ([]PlannedFile, error) {
	planned := make([]PlannedFile, 0, len(schemas))
	for _, s := range schemas {
		data, err := s.IndentedJSON()
		if err != nil {
			return nil, fmt.Errorf("encode schema %s: %w", s.Name, err)
		}
		data = append(data, '\n')
		rel := filepath.ToSlash(filepath.Join(w.schemasDir, schemaFileName(s.Name)))
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(data), Mode: 0o644})
		if w.dryRun {
			continue
		}
		if err := writeFileAtomic(filepath.Join(w.outDir, rel), data); err != nil {
			return nil, err
		}
		w.logger.Debug("wrote schema", "schema", s.Name, "path", rel)
	}
	return planned, nil
}

// writeModules renders and writes one Go package per module. Modules are
// independent, so they are written concurrently.
func (w *writer) writeModules(ctx context.Context, modules []*ModuleDescriptor) ([]PlannedFile, error) {
	planned := make([]PlannedFile, len(modules))
	// A failed module must not cancel formatting of its siblings.
	var g errgroup.Group
	if w.workers > 0 {
		g.SetLimit(w.workers)
	}
	for i, m := range modules {
		g.Go(func() error {
			rel := filepath.ToSlash(filepath.Join(w.apiDir, m.Package, m.Package+".go"))
			src, err := w.render(m)
			if err != nil {
				return err
			}
			out, ferr := formatWithTimeout(ctx, w.formatter, filepath.Base(rel), src, w.formatTimeout)
			formatted := ferr == nil
			if !formatted {
				w.logger.Error("formatting failed, writing unformatted module", "tag", m.Tag, "path", rel, "error", ferr)
				out = src
			}
			planned[i] = PlannedFile{RelPath: rel, Size: len(out), Mode: 0o644}
			if w.dryRun {
				return nil
			}
			if err := writeFileAtomic(filepath.Join(w.outDir, rel), out); err != nil {
				return err
			}
			if formatted {
				w.logger.Info("updated file", "path", rel, "functions", len(m.Artifacts))
			} else {
				w.logger.Info("updated file (unformatted)", "path", rel, "functions", len(m.Artifacts))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return planned, nil
}

func (w *writer) render(m *ModuleDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	header := struct {
		Package, Title, API, RuntimeImport string
		NeedsURL, NeedsStrings             bool
	}{
		Package:       m.Package,
		Title:         cases.Title(language.Und, cases.NoLower).String(m.Tag),
		API:           oneLine(w.apiTitle),
		RuntimeImport: w.runtimeImport,
		NeedsURL:      m.NeedsURL,
		NeedsStrings:  m.NeedsStrings,
	}
	if err := moduleHeaderTmpl.Execute(&buf, header); err != nil {
		return nil, fmt.Errorf("render module %s: %w", m.Tag, err)
	}
	for _, art := range m.Artifacts {
		buf.WriteByte('\n')
		buf.WriteString(art.Text())
	}
	return buf.Bytes(), nil
}

// formatWithTimeout runs f in its own goroutine so a stuck or panicking
// formatter only costs this module its formatting.
func formatWithTimeout(ctx context.Context, f Formatter, filename string, src []byte, timeout time.Duration) ([]byte, error) {
	if f == nil {
		return src, nil
	}
	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("formatter panic: %v", r)}
			}
		}()
		out, err := f.Format(filename, bytes.Clone(src))
		done <- result{out: out, err: err}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("formatter: %w", ctx.Err())
	}
}

// schemaFileName is the file a component schema is persisted to. Generated
// code and the runtime both key schemas by the file stem.
func schemaFileName(name string) string {
	return name + ".json"
}

// checkSchemaNames rejects component schema names that cannot be persisted
// as a file stem of the same name.
func checkSchemaNames(doc *genspec.Document) error {
	for _, s := range doc.Schemas {
		if s.Name != "" && s.Name != "." && s.Name != ".." && !strings.ContainsAny(s.Name, `/\`) {
			continue
		}
		return &genspec.SpecError{
			Code:        genspec.MalformedSpec,
			Message:     fmt.Sprintf("spec: component schema name %q cannot be used as a file name", s.Name),
			Location:    doc.Location,
			JSONPointer: "#/components/schemas/" + strings.NewReplacer("~", "~0", "/", "~1").Replace(s.Name),
		}
	}
	return nil
}

func writeFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func sortPlan(files []PlannedFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
}
