package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/pkg/protocol"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Filters = []config.FilterConfig{
		{Name: "q", Type: config.TypeString, Delay: "0s", Mode: config.ModePush},
		{Name: "tags", Type: config.TypeList, Delay: "0s", Mode: config.ModeReplace},
		{Name: "min", Type: config.TypeInt, Delay: "0s", Mode: config.ModePush},
		{
			Name:    "sort",
			Type:    config.TypeString,
			Delay:   "0s",
			Mode:    config.ModeReplace,
			Default: json.RawMessage(`"relevance"`),
			Remove:  json.RawMessage(`"relevance"`),
		},
	}
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(t *testing.T, baseURL, href string) string {
	t.Helper()
	if !strings.HasPrefix(baseURL, "http") {
		t.Fatalf("unexpected base URL: %q", baseURL)
	}
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?href=" + url.QueryEscape(href)
}

func dialWS(t *testing.T, ts *httptest.Server, href string) *websocket.Conn {
	t.Helper()
	u := wsURL(t, ts.URL, href)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", u, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q failed: %v", data, err)
	}
	return msg
}

func readType(t *testing.T, conn *websocket.Conn, typ string) protocol.ServerMessage {
	t.Helper()
	msg := readFrame(t, conn)
	if msg.Type != typ {
		t.Fatalf("frame type = %q (%+v), want %q", msg.Type, msg, typ)
	}
	return msg
}

func TestInitialStateFromHref(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products?q=red+shoes&tags=sale_new&min=20&page=3")

	msg := readType(t, conn, protocol.TypeState)
	if got := msg.Values["q"]; got != "red shoes" {
		t.Errorf("q = %v, want %q", got, "red shoes")
	}
	tags, ok := msg.Values["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "sale" || tags[1] != "new" {
		t.Errorf("tags = %#v, want [sale new]", msg.Values["tags"])
	}
	if got := msg.Values["min"]; got != float64(20) {
		t.Errorf("min = %v, want 20", got)
	}
	if got := msg.Values["sort"]; got != "relevance" {
		t.Errorf("sort = %v, want default %q", got, "relevance")
	}
}

func TestInputCommitsURL(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products?page=3")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "input", "name": "q", "value": "red shoes"})
	msg := readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?q=red+shoes" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?q=red+shoes")
	}
	if msg.Mode != "push" {
		t.Errorf("mode = %q, want push", msg.Mode)
	}
	if msg.Scroll {
		t.Error("scroll = true, want false")
	}

	writeJSON(t, conn, map[string]any{"type": "input", "name": "tags", "value": []string{"sale", "new"}})
	msg = readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?q=red+shoes&tags=sale_new" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?q=red+shoes&tags=sale_new")
	}
	if msg.Mode != "replace" {
		t.Errorf("mode = %q, want replace", msg.Mode)
	}

	writeJSON(t, conn, map[string]any{"type": "input", "name": "q", "value": ""})
	msg = readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?tags=sale_new" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?tags=sale_new")
	}
}

func TestInputSentinelRemovesParam(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "input", "name": "sort", "value": "price"})
	msg := readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?sort=price" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?sort=price")
	}

	writeJSON(t, conn, map[string]any{"type": "input", "name": "sort", "value": "relevance"})
	msg = readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products" {
		t.Errorf("href = %q, want %q", msg.Href, "/products")
	}
}

func TestNavigateReconciles(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products?q=shoes")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "navigate", "href": "/products?q=boots&min=5"})
	msg := readType(t, conn, protocol.TypeState)
	if got := msg.Values["q"]; got != "boots" {
		t.Errorf("q = %v, want boots", got)
	}
	if got := msg.Values["min"]; got != float64(5) {
		t.Errorf("min = %v, want 5", got)
	}

	// Absent parameters keep their local value.
	writeJSON(t, conn, map[string]any{"type": "navigate", "href": "/products"})
	msg = readType(t, conn, protocol.TypeState)
	if got := msg.Values["q"]; got != "boots" {
		t.Errorf("q after navigating away = %v, want boots", got)
	}

	if got := testutil.ToFloat64(srv.metrics.reconcilesTotal.WithLabelValues("q")); got != 1 {
		t.Errorf("reconciles_total{filter=q} = %v, want 1", got)
	}
}

func TestNavigateResetsPagination(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products?q=shoes")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "navigate", "href": "/products?q=boots&page=2"})
	msg := readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?q=boots" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?q=boots")
	}
	msg = readType(t, conn, protocol.TypeState)
	if got := msg.Values["q"]; got != "boots" {
		t.Errorf("q = %v, want boots", got)
	}
}

func TestConcurrentCommitsKeepAllParams(t *testing.T) {
	cfg := testConfig()
	for i := range cfg.Filters {
		cfg.Filters[i].Delay = "1ms"
	}
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "/products?page=2")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "input", "name": "q", "value": "hat"})
	writeJSON(t, conn, map[string]any{"type": "input", "name": "tags", "value": []string{"wool"}})
	writeJSON(t, conn, map[string]any{"type": "input", "name": "min", "value": 3})
	writeJSON(t, conn, map[string]any{"type": "input", "name": "sort", "value": "price"})

	want := "/products?min=3&q=hat&sort=price&tags=wool"
	deadline := time.Now().Add(2 * time.Second)
	var last string
	for last != want && time.Now().Before(deadline) {
		last = readType(t, conn, protocol.TypeURL).Href
	}
	if last != want {
		t.Errorf("last url = %q, want %q", last, want)
	}
}

func TestBindFailureSendsErrorFrame(t *testing.T) {
	cfg := testConfig()
	cfg.Filters = append(cfg.Filters, config.FilterConfig{Name: "when", Type: "date"})
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "/products")
	msg := readType(t, conn, protocol.TypeError)
	if msg.Code != "F012" {
		t.Errorf("code = %q (%s), want F012", msg.Code, msg.Message)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
	if got := srv.SessionCount(); got != 0 {
		t.Errorf("SessionCount() = %d, want 0", got)
	}
}

func TestErrorFrames(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"unknown filter", `{"type":"input","name":"nope","value":"x"}`, "F002"},
		{"wrong value type", `{"type":"input","name":"min","value":"ten"}`, "F003"},
		{"malformed json", `{"type":`, "F004"},
		{"input without value", `{"type":"input","name":"q"}`, "F004"},
		{"unknown type", `{"type":"teleport"}`, "F005"},
		{"bad href", `{"type":"navigate","href":"::"}`, "F001"},
	}

	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products")
	readType(t, conn, protocol.TypeState)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			msg := readType(t, conn, protocol.TypeError)
			if msg.Code != tt.wantCode {
				t.Errorf("code = %q (%s), want %q", msg.Code, msg.Message, tt.wantCode)
			}
		})
	}
}

func TestFlushCommitsPendingInput(t *testing.T) {
	cfg := testConfig()
	cfg.Filters[0].Delay = "1h"
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "/products")
	readType(t, conn, protocol.TypeState)

	writeJSON(t, conn, map[string]any{"type": "input", "name": "q", "value": "hat"})
	writeJSON(t, conn, map[string]any{"type": "flush"})

	msg := readType(t, conn, protocol.TypeURL)
	if msg.Href != "/products?q=hat" {
		t.Errorf("href = %q, want %q", msg.Href, "/products?q=hat")
	}
}

func TestMetrics(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dialWS(t, ts, "/products")
	readType(t, conn, protocol.TypeState)

	if got := srv.SessionCount(); got != 1 {
		t.Errorf("SessionCount() = %d, want 1", got)
	}

	writeJSON(t, conn, map[string]any{"type": "input", "name": "q", "value": "scarf"})
	readType(t, conn, protocol.TypeURL)

	// Messages are handled in order, so the commit above has been counted
	// once this error frame arrives.
	writeJSON(t, conn, map[string]any{"type": "input", "name": "nope", "value": 1})
	readType(t, conn, protocol.TypeError)

	if got := testutil.ToFloat64(srv.metrics.commitsTotal.WithLabelValues("q", "push", "set")); got != 1 {
		t.Errorf("commits_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(srv.metrics.messagesTotal.WithLabelValues("input", "error")); got != 1 {
		t.Errorf("messages_total{input,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(srv.metrics.sessionsActive); got != 1 {
		t.Errorf("sessions_active = %v, want 1", got)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"filterd_sessions_total", "filterd_commits_total", "filterd_messages_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

func TestMetricsCarryAppLabel(t *testing.T) {
	cfg := testConfig()
	cfg.Name = "shop"
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()

	count, err := testutil.GatherAndCount(srv.Registry(), "filterd_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("series = %d, want 1", count)
	}
	families, err := srv.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "filterd_http_requests_total" {
			continue
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "app" && lp.GetValue() == "shop" {
				return
			}
		}
	}
	t.Error("filterd_http_requests_total has no app=shop label")
}

func TestTracedSkipsHealthAndMetrics(t *testing.T) {
	srv := New(testConfig())
	tests := []struct {
		path string
		want bool
	}{
		{"/ws", true},
		{"/healthz", false},
		{"/metrics", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := srv.traced(r); got != tt.want {
			t.Errorf("traced(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestInvalidHrefRejected(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ws?href=" + url.QueryEscape("::"))
	if err != nil {
		t.Fatalf("GET /ws failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionIDFailureRefusesUpgrade(t *testing.T) {
	prev := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }
	t.Cleanup(func() { randRead = prev })

	srv, ts := newTestServer(t)
	u := wsURL(t, ts.URL, "/products")
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("expected the dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("response = %v, want 500", resp)
	}
	if got := srv.SessionCount(); got != 0 {
		t.Errorf("SessionCount() = %d, want 0", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"https://shop.example"}
	srv := New(cfg)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://shop.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := srv.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
