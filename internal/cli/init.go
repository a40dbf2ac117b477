package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath  string
	Force       bool
	Interactive bool
	Verbose     bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample spec2client configuration file",
		Long:  "Scaffold a commented spec2client configuration file that documents available options, or fill one in interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			interactive, err := cmd.Flags().GetBool("interactive")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath:  out,
				Force:       force,
				Interactive: interactive,
				Verbose:     verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "spec2client.yaml", "Where to write the config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")
	cmd.Flags().BoolP("interactive", "i", false, "Answer a short form instead of writing the commented sample")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "spec2client.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if cfg.Interactive {
		answers := &InitAnswers{Out: "."}
		if err := initPrompter(answers); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return newUsageError("init: aborted")
			}
			return fmt.Errorf("init: %w", err)
		}
		content, err = renderAnswers(answers)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	if err := writeFileAtomic(absPath, []byte(content)); err != nil {
		return usageError{msg: fmt.Sprintf("init: cannot write %s: %v\nHint: choose a different --out or check directory permissions.", absPath, err), cause: err}
	}
	newLogger(os.Stderr, cfg.Verbose).Debug("updated file", "path", absPath)
	printResult(os.Stdout, []resultField{{Label: "Config", Value: absPath}}, "")
	return nil
}

func renderAnswers(answers *InitAnswers) (string, error) {
	data, err := yaml.Marshal(answers)
	if err != nil {
		return "", err
	}
	return "# spec2client configuration (YAML)\n" + string(data), nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# spec2client configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or http(s) URL of the OpenAPI/Swagger document.
# input: ./openapi.yaml

# Output root directory. Schemas and API packages are written below it.
# out: .

# Schema directory, relative to out.
# schemasDir: schemas

# API package directory, relative to out.
# apiDir: api

# Import path of the apiclient runtime used by generated code.
# runtimeImport: github.com/mark3labs/spec2client/pkg/apiclient

# Only include operations with these tags (comma-separated or list).
# includeTags: [items,users]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Validate the document with kin-openapi before generating.
# strict: false

# Skip operations with unresolved references instead of aborting.
# skipInvalid: false

# Let goimports add and remove imports, not only format.
# fixImports: false

# Per-package formatting timeout.
# formatTimeout: 10s

# Concurrent package writes. 0 means GOMAXPROCS.
# workers: 0

# Preview planned outputs without writing files.
# dryRun: false

# Enable verbose logging.
# verbose: false
`
