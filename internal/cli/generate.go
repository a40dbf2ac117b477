package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/spec2client/internal/generator"
	genspec "github.com/mark3labs/spec2client/internal/spec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input         string
	Out           string
	SchemasDir    string
	APIDir        string
	RuntimeImport string
	IncludeTags   []string
	ExcludeTags   []string
	Strict        bool
	SkipInvalid   bool
	FixImports    bool
	FormatTimeout time.Duration
	Workers       int
	ConfigPath    string
	DryRun        bool
	Verbose       bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:           ".",
		SchemasDir:    generator.DefaultSchemasDir,
		APIDir:        generator.DefaultAPIDir,
		RuntimeImport: generator.DefaultRuntimeImport,
		FormatTimeout: generator.DefaultFormatTimeout,
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go client packages from an OpenAPI/Swagger document",
		Long: "Generate one Go client package per tag and one JSON schema file per component schema. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  spec2client generate --input openapi.yaml --out ./client
  spec2client --config spec2client.yaml generate --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or http(s) URL of the OpenAPI/Swagger document")
	flags.String("out", "", "Output root directory (default \".\")")
	flags.String("schemas-dir", "", "Schema directory, relative to --out (default \"schemas\")")
	flags.String("api-dir", "", "API package directory, relative to --out (default \"api\")")
	flags.String("runtime-import", "", "Import path of the apiclient runtime used by generated code")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.Bool("strict", false, "Validate the document with kin-openapi before generating")
	flags.Bool("skip-invalid", false, "Skip operations with unresolved references instead of aborting")
	flags.Bool("fix-imports", false, "Let goimports add and remove imports, not only format")
	flags.Duration("format-timeout", 0, "Per-package formatting timeout (default 10s)")
	flags.Int("workers", 0, "Concurrent package writes (default GOMAXPROCS)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":          &cfg.Input,
		"out":            &cfg.Out,
		"schemas-dir":    &cfg.SchemasDir,
		"api-dir":        &cfg.APIDir,
		"runtime-import": &cfg.RuntimeImport,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	tags := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
	}
	for name, dst := range tags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeTags(value)
	}

	bools := map[string]*bool{
		"strict":       &cfg.Strict,
		"skip-invalid": &cfg.SkipInvalid,
		"fix-imports":  &cfg.FixImports,
		"dry-run":      &cfg.DryRun,
		"verbose":      &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("format-timeout") {
		value, err := flags.GetDuration("format-timeout")
		if err != nil {
			return err
		}
		cfg.FormatTimeout = value
	}
	if flags.Changed("workers") {
		value, err := flags.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = "."
	}
	c.SchemasDir = strings.TrimSpace(c.SchemasDir)
	c.APIDir = strings.TrimSpace(c.APIDir)
	c.RuntimeImport = strings.TrimSpace(c.RuntimeImport)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	for name, dir := range map[string]string{"schemas-dir": c.SchemasDir, "api-dir": c.APIDir} {
		if filepath.IsAbs(dir) {
			return newUsageError(fmt.Sprintf("generate: --%s must be relative to --out, got %q", name, dir))
		}
	}
	if c.FormatTimeout < 0 {
		return newUsageError("generate: --format-timeout must not be negative")
	}
	if c.Workers < 0 {
		return newUsageError("generate: --workers must not be negative")
	}

	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(os.Stderr, cfg.Verbose)

	// 1) Load the document (file or http/https URL), converting Swagger 2.0
	doc, err := loadDocument(ctx, cfg)
	if err != nil {
		return specUsageError(err)
	}
	logger.Debug("loaded document", "location", doc.Location, "openapi", doc.OpenAPI, "paths", len(doc.Paths), "schemas", len(doc.Schemas))

	// 2) Generate schemas and client packages
	res, err := generator.Generate(ctx, doc, generator.Options{
		OutDir:        cfg.Out,
		SchemasDir:    cfg.SchemasDir,
		APIDir:        cfg.APIDir,
		RuntimeImport: cfg.RuntimeImport,
		IncludeTags:   cfg.IncludeTags,
		ExcludeTags:   cfg.ExcludeTags,
		SkipInvalid:   cfg.SkipInvalid,
		Formatter:     generator.GoImports{FixImports: cfg.FixImports},
		FormatTimeout: cfg.FormatTimeout,
		Workers:       cfg.Workers,
		DryRun:        cfg.DryRun,
		Logger:        logger,
	})
	if err != nil {
		var se *genspec.SpecError
		if errors.As(err, &se) {
			return specUsageError(err)
		}
		return wrapOutputError(err, absPath(cfg.Out))
	}

	// 3) Report
	if cfg.DryRun {
		printPlan(os.Stdout, absPath(cfg.Out), res.Planned)
		return nil
	}
	printSummary(os.Stdout, absPath(cfg.Out), res)
	return nil
}

func loadDocument(ctx context.Context, cfg *GenerateConfig) (*genspec.Document, error) {
	opts := []genspec.Option{genspec.WithStrictValidation(cfg.Strict)}
	lower := strings.ToLower(cfg.Input)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return genspec.LoadFile(ctx, cfg.Input, opts...)
	}
	raw, err := genspec.Fetch(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	return genspec.Parse(ctx, raw, append(opts, genspec.WithLocation(cfg.Input))...)
}

func absPath(dir string) string {
	if ap, err := filepath.Abs(dir); err == nil {
		return ap
	}
	return dir
}

func printPlan(w io.Writer, outDir string, planned []generator.PlannedFile) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(planned))
	for _, p := range planned {
		fmt.Fprintf(w, "- %s (%d bytes)\n", filepath.ToSlash(p.RelPath), p.Size)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "not a directory") {
		return usageError{msg: fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or check directory permissions.", outDir, msg), cause: err}
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value any) error {
	var err error
	switch key {
	case "input":
		cfg.Input, err = valueAsString(value)
	case "out":
		cfg.Out, err = valueAsString(value)
	case "schemasdir":
		cfg.SchemasDir, err = valueAsString(value)
	case "apidir":
		cfg.APIDir, err = valueAsString(value)
	case "runtimeimport":
		cfg.RuntimeImport, err = valueAsString(value)
	case "includetags":
		var list []string
		list, err = valueAsStringSlice(value)
		cfg.IncludeTags = sanitizeTags(list)
	case "excludetags":
		var list []string
		list, err = valueAsStringSlice(value)
		cfg.ExcludeTags = sanitizeTags(list)
	case "strict":
		cfg.Strict, err = valueAsBool(value)
	case "skipinvalid":
		cfg.SkipInvalid, err = valueAsBool(value)
	case "fiximports":
		cfg.FixImports, err = valueAsBool(value)
	case "formattimeout":
		cfg.FormatTimeout, err = valueAsDuration(value)
	case "workers":
		cfg.Workers, err = valueAsInt(value)
	case "dryrun":
		cfg.DryRun, err = valueAsBool(value)
	case "verbose":
		cfg.Verbose, err = valueAsBool(value)
	default:
		return errUnknownField
	}
	return err
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// valueAsDuration accepts Go duration strings ("30s") or whole seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Second, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
