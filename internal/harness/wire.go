package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/roach88/bindery/internal/transport"
)

// Wires between the set and its REST endpoint.
const (
	WireDirect    = "direct"
	WireHTTP      = "http"
	WireWebSocket = "websocket"
)

// Wires lists the accepted WithWire values.
var Wires = []string{WireDirect, WireHTTP, WireWebSocket}

// responseEnvelope wraps successful HTTP bodies, so the client has to unwrap
// them the way it would for an enveloped API.
const responseEnvelope = "data"

// connect returns the Syncer the set talks to and a func releasing it. For
// the network wires the endpoint is served on a loopback listener for the
// duration of the run.
func connect(ctx context.Context, wire string, rest *transport.REST, logger *slog.Logger) (transport.Syncer, func() error, error) {
	switch wire {
	case "", WireDirect:
		return rest, func() error { return nil }, nil

	case WireHTTP:
		addr, stop, err := serve(&transport.HTTPHandler{Backend: rest, Envelope: responseEnvelope, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		client := transport.NewHTTP(
			transport.WithBaseURL("http://"+addr),
			transport.WithResponsePath(responseEnvelope),
			transport.WithLogger(logger),
		)
		return client, stop, nil

	case WireWebSocket:
		addr, stop, err := serve(&transport.WebSocketHandler{Backend: rest, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		ws, err := transport.DialWebSocket(ctx, "ws://"+addr+"/", transport.WithWebSocketLogger(logger))
		if err != nil {
			return nil, nil, errors.Join(err, stop())
		}
		return ws, func() error { return errors.Join(ws.Close(), stop()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown wire %q", wire)
}

// serve runs handler on a loopback port until the returned stop is called.
func serve(handler http.Handler) (string, func() error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen: %w", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		_ = srv.Serve(ln)
	}()
	return ln.Addr().String(), srv.Close, nil
}
