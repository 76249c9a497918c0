// Package server hosts URL-bound filters behind a websocket.
//
// Each websocket connection is a Session. A Session owns an in-memory
// navigation.History seeded from the page's URL and one filter.Binding per
// filter declared in configuration. The browser reports input and
// navigation; the session reports back the URL each binding commits and the
// filter values after external navigation.
//
// # Endpoints
//
//   - GET /ws?href=<url>  websocket session starting at href
//   - GET /healthz        liveness check
//   - GET /metrics        Prometheus metrics (path configurable)
//
// # Message Flow
//
//  1. The browser sends {"type":"input","name":"q","value":"shoes"}.
//  2. The session decodes the value into the filter's type and calls Set.
//  3. After the filter's delay the binding commits: it drops "page",
//     writes its parameter and pushes or replaces the history entry.
//  4. The session forwards the new URL as {"type":"url",...}.
//
// A {"type":"navigate"} frame (link click, back button) moves the history,
// which makes every binding reconcile; the session then replies with a
// {"type":"state"} frame holding all filter values.
//
// Every binding navigation runs inside an OpenTelemetry span and is counted
// in Prometheus.
package server
