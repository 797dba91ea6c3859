package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Prefilter may rewrite an outgoing request (add auth headers, rewrite the
// host) before it is sent. Returning an error aborts the call.
type Prefilter func(req *http.Request) error

// HTTP is a JSON REST Syncer over net/http.
type HTTP struct {
	client       *http.Client
	baseURL      string
	header       http.Header
	prefilter    Prefilter
	responsePath string
	logger       *slog.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithClient sets the http.Client used for requests.
func WithClient(c *http.Client) HTTPOption {
	return func(t *HTTP) {
		t.client = c
	}
}

// WithBaseURL prefixes relative request URLs.
func WithBaseURL(base string) HTTPOption {
	return func(t *HTTP) {
		t.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTP) {
		t.header.Add(key, value)
	}
}

// WithPrefilter installs a request prefilter.
func WithPrefilter(p Prefilter) HTTPOption {
	return func(t *HTTP) {
		t.prefilter = p
	}
}

// WithResponsePath decodes only the part of each response body selected by a
// gjson path, for APIs that wrap payloads in an envelope such as
// {"data": [...]}. Bodies where the path does not exist decode as a whole.
func WithResponsePath(path string) HTTPOption {
	return func(t *HTTP) {
		t.responsePath = path
	}
}

// WithLogger sets the logger requests are reported to at debug level.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(t *HTTP) {
		t.logger = l
	}
}

// NewHTTP creates an HTTP transport.
func NewHTTP(opts ...HTTPOption) *HTTP {
	t := &HTTP{
		client: http.DefaultClient,
		header: http.Header{},
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do sends req and decodes the response.
func (t *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	target := req.URL
	if t.baseURL != "" && !strings.Contains(target, "://") {
		target = t.baseURL + "/" + strings.TrimPrefix(target, "/")
	}
	if len(req.Query) > 0 && !req.Method.HasBody() {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	if req.Method.HasBody() && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method.HTTPMethod(), target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}

	if t.prefilter != nil {
		if err := t.prefilter(httpReq); err != nil {
			return nil, fmt.Errorf("prefilter: %w", err)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", httpReq.Method, target, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
		JSON:   t.decode(data),
	}

	t.logger.Debug("sync request",
		"method", httpReq.Method,
		"url", target,
		"status", resp.Status,
	)

	return checkStatus(req, resp)
}

func (t *HTTP) decode(data []byte) any {
	if t.responsePath != "" && gjson.ValidBytes(data) {
		if res := gjson.GetBytes(data, t.responsePath); res.Exists() {
			return DecodeBody([]byte(res.Raw))
		}
	}
	return DecodeBody(data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
