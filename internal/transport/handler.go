package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// HTTPHandler serves a Backend Syncer as a JSON REST API, the counterpart of
// the HTTP transport.
//
// With Envelope set, successful JSON bodies are wrapped as
// {"<Envelope>": body}; clients unwrap them with WithResponsePath.
type HTTPHandler struct {
	Backend  Syncer
	Envelope string
	Logger   *slog.Logger
}

// ServeHTTP translates the request into a sync call and writes the backend's
// response.
func (h *HTTPHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = discardLogger()
	}

	method, ok := MethodFromHTTP(r.Method)
	if !ok {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := &Request{Method: method, URL: r.URL.Path, Header: r.Header}
	if q := r.URL.Query(); len(q) > 0 {
		req.Query = q
	}
	if method.HasBody() {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(rw, "read body", http.StatusBadRequest)
			return
		}
		req.Body = body
	}

	resp, err := h.Backend.Do(r.Context(), req)
	if resp == nil {
		logger.Debug("backend failed", "method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(rw, http.StatusInternalServerError, []byte(`{"error":`+quote(errString(err))+`}`))
		return
	}

	body := resp.Body
	if h.Envelope != "" && resp.OK() && json.Valid(body) {
		var buf bytes.Buffer
		buf.WriteString(`{` + quote(h.Envelope) + `:`)
		buf.Write(body)
		buf.WriteString(`}`)
		body = buf.Bytes()
	}
	for k, vs := range resp.Header {
		rw.Header()[k] = vs
	}
	writeJSON(rw, resp.Status, body)
}

func writeJSON(rw http.ResponseWriter, status int, body []byte) {
	if len(body) > 0 {
		rw.Header().Set("Content-Type", "application/json")
	}
	rw.WriteHeader(status)
	_, _ = rw.Write(body)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func errString(err error) string {
	if err == nil {
		return "no response"
	}
	return err.Error()
}
