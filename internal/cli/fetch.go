package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	genspec "github.com/mark3labs/spec2client/internal/spec"
	"github.com/spf13/cobra"
)

const (
	defaultFetchURL = "http://127.0.0.1:8000/openapi.json"
	defaultFetchOut = "openapi.yaml"
)

// FetchConfig captures the options for the fetch command.
type FetchConfig struct {
	URL     string
	Out     string
	Format  string // yaml|json; derived from Out when empty
	Timeout time.Duration
	Retries int
	Verbose bool
}

var fetchRunner = runFetch

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download an OpenAPI document from a running service",
		Long:  "Download an OpenAPI document over http(s) and store it as YAML or JSON, keeping its key order.",
		Example: strings.TrimSpace(`  spec2client fetch
  spec2client fetch --url https://api.example.com/openapi.json --out openapi.json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := &FetchConfig{}
			var err error
			if cfg.URL, err = flags.GetString("url"); err != nil {
				return err
			}
			if cfg.Out, err = flags.GetString("out"); err != nil {
				return err
			}
			if cfg.Format, err = flags.GetString("format"); err != nil {
				return err
			}
			if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
				return err
			}
			if cfg.Retries, err = flags.GetInt("retries"); err != nil {
				return err
			}
			if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
				return err
			}
			if err := cfg.normalize(); err != nil {
				return err
			}
			return fetchRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("url", defaultFetchURL, "URL of the OpenAPI document")
	cmd.Flags().String("out", defaultFetchOut, "Where to write the document")
	cmd.Flags().String("format", "", "Output format (yaml|json); derived from --out when omitted")
	cmd.Flags().Duration("timeout", 10*time.Second, "Per-request timeout")
	cmd.Flags().Int("retries", 3, "Attempts for transient failures")

	return cmd
}

func (c *FetchConfig) normalize() error {
	c.URL = strings.TrimSpace(c.URL)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = defaultFetchOut
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = "yaml"
		if strings.EqualFold(filepath.Ext(c.Out), ".json") {
			c.Format = "json"
		}
	}
	switch c.Format {
	case "yaml", "yml", "json":
	default:
		return newUsageError(fmt.Sprintf("fetch: unsupported --format %q (allowed: yaml, json)", c.Format))
	}
	if c.Retries < 1 {
		return newUsageError("fetch: --retries must be at least 1")
	}
	return nil
}

func runFetch(ctx context.Context, cfg *FetchConfig) error {
	logger := newLogger(os.Stderr, cfg.Verbose)

	raw, err := genspec.Fetch(ctx, cfg.URL, genspec.WithHTTPTimeout(cfg.Timeout), genspec.WithMaxRetries(cfg.Retries))
	if err != nil {
		return specUsageError(err)
	}
	logger.Debug("downloaded document", "url", cfg.URL, "bytes", len(raw))

	out, err := genspec.Reformat(raw, cfg.Format)
	if err != nil {
		return specUsageError(err)
	}

	target := absPath(cfg.Out)
	if err := writeFileAtomic(target, out); err != nil {
		return usageError{msg: fmt.Sprintf("fetch: cannot write %s: %v", target, err), cause: err}
	}
	logger.Info("updated file", "path", target, "format", cfg.Format)
	printResult(os.Stdout, []resultField{
		{Label: "Source", Value: cfg.URL},
		{Label: "Saved", Value: target},
	}, "")
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
