// Package transport carries entity and entity-set sync calls to a backend.
//
// Entities never talk to a network directly. They build a Request (verb, URL,
// JSON body) and hand it to a Syncer. This package provides the Syncer
// implementations:
//
//   - HTTP: a JSON REST client over net/http with a request prefilter hook
//   - WebSocket: request/reply frames over a single gorilla/websocket
//     connection, correlated by ULID
//   - REST: an in-process REST endpoint over a ResourceStore (Memory here,
//     SQLite in the sqlstore subpackage)
//   - Metrics: a Prometheus wrapper around any other Syncer
//
// HTTPHandler and WebSocketHandler serve any Syncer to the matching client.
//
// Every Syncer returns a Response whose JSON field holds the decoded body.
// Bodies that are empty or not JSON decode to an empty object rather than an
// error. A non-2xx status is reported as *StatusError alongside the Response.
package transport
