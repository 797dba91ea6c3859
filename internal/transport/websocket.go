package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the JSON message exchanged over a WebSocket. Requests carry
// Method/URL/Body; replies echo ID and carry Status/Body.
type frame struct {
	ID     string          `json:"id"`
	Method Method          `json:"method,omitempty"`
	URL    string          `json:"url,omitempty"`
	Query  string          `json:"query,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Status int             `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WebSocket is a Syncer that multiplexes sync calls over one WebSocket
// connection. Calls are serialized; replies are matched to requests by a
// ULID correlation id and stray replies are dropped.
type WebSocket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	ids    IDGenerator
	logger *slog.Logger
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithFrameIDs sets the correlation id generator.
func WithFrameIDs(g IDGenerator) WebSocketOption {
	return func(w *WebSocket) {
		w.ids = g
	}
}

// WithWebSocketLogger sets the logger calls are reported to at debug level.
func WithWebSocketLogger(l *slog.Logger) WebSocketOption {
	return func(w *WebSocket) {
		w.logger = l
	}
}

// DialWebSocket connects to a WebSocket sync endpoint such as one served by
// WebSocketHandler.
func DialWebSocket(ctx context.Context, endpoint string, opts ...WebSocketOption) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	w := &WebSocket{
		conn:   conn,
		ids:    ULIDGenerator{},
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Do sends req as a frame and waits for the matching reply.
func (w *WebSocket) Do(ctx context.Context, req *Request) (*Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil, ErrClosed
	}

	out := frame{
		ID:     w.ids.Generate(),
		Method: req.Method,
		URL:    req.URL,
	}
	if len(req.Query) > 0 {
		out.Query = req.Query.Encode()
	}
	if req.Method.HasBody() && len(req.Body) > 0 {
		out.Body = json.RawMessage(req.Body)
	}

	var deadline time.Time
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	if err := w.conn.WriteJSON(out); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	for {
		var reply frame
		if err := w.conn.ReadJSON(&reply); err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if reply.ID != out.ID {
			w.logger.Debug("dropping stray frame", "id", reply.ID)
			continue
		}
		if reply.Status == 0 {
			return nil, fmt.Errorf("frame %s: %s", reply.ID, reply.Error)
		}

		resp := NewResponse(reply.Status, reply.Body)
		w.logger.Debug("sync request",
			"method", req.Method.HTTPMethod(),
			"url", req.URL,
			"status", resp.Status,
			"frame", out.ID,
		)
		return checkStatus(req, resp)
	}
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := w.conn.Close()
	w.conn = nil
	return err
}

// WebSocketHandler serves sync frames from a Backend Syncer, one connection
// per client.
type WebSocketHandler struct {
	Backend  Syncer
	Upgrader websocket.Upgrader
	Logger   *slog.Logger
}

// ServeHTTP upgrades the connection and answers frames until the client
// disconnects.
func (h *WebSocketHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = discardLogger()
	}

	conn, err := h.Upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var in frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		req := &Request{Method: in.Method, URL: in.URL, Body: in.Body}
		if in.Query != "" {
			if q, err := url.ParseQuery(in.Query); err == nil {
				req.Query = q
			}
		}

		reply := frame{ID: in.ID}
		resp, err := h.Backend.Do(r.Context(), req)
		switch {
		case resp != nil:
			reply.Status = resp.Status
			if json.Valid(resp.Body) {
				reply.Body = json.RawMessage(resp.Body)
			}
		case err != nil:
			reply.Error = err.Error()
		}

		if err := conn.WriteJSON(reply); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}
