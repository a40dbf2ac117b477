// Package apiclient is the runtime used by generated API packages. It binds
// generated functions to an HTTP transport, a response schema validator and a
// sample payload generator, each behind a small interface.
package apiclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
)

// Requester performs one HTTP exchange. url is a path, optionally with a
// query string, relative to whatever base the implementation targets.
type Requester interface {
	Do(ctx context.Context, method, url string, body any) (*Response, error)
}

// ResponseValidator checks a decoded JSON instance against a named schema.
type ResponseValidator interface {
	Validate(schemaName string, instance any) error
}

// PayloadGenerator produces a sample instance of a named schema.
type PayloadGenerator interface {
	Generate(schemaName string) (any, error)
}

// Response is the result of a request.
type Response struct {
	Status int
	Header http.Header
	Body   any // decoded JSON, or the raw text when the body is not JSON
	Raw    []byte

	// Validation is set when the body did not match the expected schema.
	Validation *ValidationMismatch
}

// ValidationMismatch records a response body that failed schema validation.
// It is informational: the call that produced it still succeeds.
type ValidationMismatch struct {
	Schema string
	Errors []string
}

func (m *ValidationMismatch) Error() string {
	if len(m.Errors) == 0 {
		return "response does not match schema " + m.Schema
	}
	return "response does not match schema " + m.Schema + ": " + m.Errors[0]
}

// Client is what generated functions receive. Validator and Payloads are
// optional; without them CheckResponse is a no-op and GeneratePayload fails.
type Client struct {
	Requester Requester
	Validator ResponseValidator
	Payloads  PayloadGenerator
	Logger    *slog.Logger
}

var ErrNoPayloadGenerator = errors.New("apiclient: no payload generator configured")

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, url, nil)
}

func (c *Client) Post(ctx context.Context, url string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

func (c *Client) Put(ctx context.Context, url string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, url, body)
}

func (c *Client) Patch(ctx context.Context, url string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, url, body)
}

func (c *Client) Do(ctx context.Context, method, url string, body any) (*Response, error) {
	if c.Requester == nil {
		return nil, errors.New("apiclient: no requester configured")
	}
	return c.Requester.Do(ctx, method, url, body)
}

// CheckResponse validates res.Body against schemaName. A mismatch is logged,
// stored on res and returned; it never turns the call into a failure.
func (c *Client) CheckResponse(ctx context.Context, schemaName string, res *Response) *ValidationMismatch {
	if c.Validator == nil || res == nil {
		return nil
	}
	err := c.Validator.Validate(schemaName, res.Body)
	if err == nil {
		return nil
	}
	mismatch := &ValidationMismatch{Schema: schemaName, Errors: errorMessages(err)}
	res.Validation = mismatch
	c.logger().ErrorContext(ctx, "response validation failed",
		"schema", schemaName, "status", res.Status, "errors", mismatch.Errors)
	return mismatch
}

// GeneratePayload builds a sample instance of schemaName and shallow-merges
// overrides into it. Override keys win. Overrides are ignored when the sample
// is not a JSON object.
func (c *Client) GeneratePayload(schemaName string, overrides map[string]any) (any, error) {
	if c.Payloads == nil {
		return nil, ErrNoPayloadGenerator
	}
	payload, err := c.Payloads.Generate(schemaName)
	if err != nil {
		return nil, err
	}
	return MergeOverrides(payload, overrides), nil
}

// MergeOverrides returns payload with overrides applied on top when payload
// is an object, and payload unchanged otherwise.
func MergeOverrides(payload any, overrides map[string]any) any {
	obj, ok := payload.(map[string]any)
	if !ok || len(overrides) == 0 {
		return payload
	}
	merged := make(map[string]any, len(obj)+len(overrides))
	maps.Copy(merged, obj)
	maps.Copy(merged, overrides)
	return merged
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func errorMessages(err error) []string {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, errorMessages(e)...)
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{err.Error()}
}
