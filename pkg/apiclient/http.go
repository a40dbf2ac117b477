package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is used when API_BASE_URL is unset.
const DefaultBaseURL = "http://localhost:8000"

// BaseURLFromEnv returns $API_BASE_URL or DefaultBaseURL.
func BaseURLFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("API_BASE_URL")); v != "" {
		return v
	}
	return DefaultBaseURL
}

// StatusError is returned when the server answers with a status the
// requester does not accept.
type StatusError struct {
	Method   string
	URL      string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Response.Status)
}

// HTTPRequester sends JSON requests with net/http.
type HTTPRequester struct {
	BaseURL string
	Client  *http.Client
	Header  http.Header
	// Accept decides which statuses are successes. Defaults to 2xx.
	Accept func(status int) bool
}

func NewHTTPRequester(baseURL string) *HTTPRequester {
	return &HTTPRequester{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRequester) Do(ctx context.Context, method, url string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	target := r.BaseURL + url
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	res := &Response{Status: resp.StatusCode, Header: resp.Header, Raw: raw, Body: decodeBody(raw)}
	accept := r.Accept
	if accept == nil {
		accept = func(s int) bool { return s >= 200 && s < 300 }
	}
	if !accept(res.Status) {
		return res, &StatusError{Method: method, URL: target, Response: res}
	}
	return res, nil
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
