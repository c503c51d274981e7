package http_request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// DefaultMaxBodyBytes bounds how much of a response body is kept.
const DefaultMaxBodyBytes = 4 << 20

const schema = `{
  "type": "object",
  "required": ["url"],
  "properties": {
    "url": {"type": "string", "pattern": "^https?://"},
    "method": {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "get", "post", "put", "patch", "delete", "head"]},
    "headers": {"type": "object", "additionalProperties": {"type": "string"}},
    "body": {},
    "timeout": {"type": "string"}
  }
}`

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request. Nil means a shared default client.
	Client *http.Client
}

// httpClient is shared by modules without their own client to reuse TCP connections.
var httpClient = NewClient(60 * time.Second)

// NewClient returns a client with a pooled transport.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Input defines the parameters of the http tool.
type Input struct {
	URL     string            `param:"url"`
	Method  string            `param:"method"`
	Headers map[string]string `param:"headers"`
	Body    any               `param:"body"`
	Timeout time.Duration     `param:"timeout"`
}

// Output is the response of an http step. JSON is set when the response
// declares a JSON content type and decodes cleanly.
type Output struct {
	StatusCode int               `json:"status_code"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	JSON       any               `json:"json,omitempty"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("http", schema, m.Do))
}

// Do performs one HTTP request. Status codes of 400 and above fail the step.
func (m *Module) Do(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if in.Method == "" {
		in.Method = http.MethodGet
	}
	in.Method = strings.ToUpper(in.Method)

	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(in.Body)
	if err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", in.Method, "url", in.URL)

	req, err := http.NewRequestWithContext(ctx, in.Method, in.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	client := m.Client
	if client == nil {
		client = httpClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := Output{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       string(bodyBytes),
	}
	for k := range resp.Header {
		out.Headers[k] = resp.Header.Get(k)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var decoded any
		if json.Unmarshal(bodyBytes, &decoded) == nil {
			out.JSON = decoded
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP request failed with status %s", resp.Status)
	}
	return out, nil
}

// Close drops idle connections held by the module's client.
func (m *Module) Close() error {
	client := m.Client
	if client == nil {
		client = httpClient
	}
	client.CloseIdleConnections()
	return nil
}

// encodeBody sends strings verbatim and everything else as JSON.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}
