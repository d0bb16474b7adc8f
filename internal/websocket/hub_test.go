package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ActiveConnections() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d active connections, got %d", n, hub.ActiveConnections())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return event
}

func TestPublishAnalysis(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastAnalyses: true, BroadcastFallbacks: true})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	hub.PublishAnalysis("req-1", AnalysisEvent{
		DocumentLength: 42,
		OverallScore:   37.5,
		GapCount:       9,
		CriticalGaps:   3,
		Source:         "rule_based",
	})

	event := readEvent(t, conn)
	if event["type"] != string(EventTypeAnalysisCompleted) {
		t.Fatalf("unexpected event type %v", event["type"])
	}
	if event["request_id"] != "req-1" {
		t.Errorf("expected request id req-1, got %v", event["request_id"])
	}
	data := event["data"].(map[string]interface{})
	if data["overall_score"] != 37.5 {
		t.Errorf("expected score 37.5, got %v", data["overall_score"])
	}
	if _, ok := data["text"]; ok {
		t.Error("analysis event must not carry document text")
	}
}

func TestDisabledEventsAreDropped(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastAnalyses: false, BroadcastFallbacks: true})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	hub.PublishAnalysis("req-1", AnalysisEvent{OverallScore: 10})
	hub.PublishFallback("req-2", FallbackEvent{Strategy: "llm", Reason: "timeout"})

	event := readEvent(t, conn)
	if event["type"] != string(EventTypeLLMFallback) {
		t.Fatalf("expected only the fallback event, got %v", event["type"])
	}
}

func TestSubscriptionFilter(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastAnalyses: true, BroadcastFallbacks: true})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	err := conn.WriteJSON(ClientMessage{
		Type: "subscribe",
		Data: map[string]interface{}{
			"events": []string{"analysis_completed"},
			"filter": map[string]interface{}{"max_score": 50.0},
		},
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	// the pong proves the subscription was processed
	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("failed to ping: %v", err)
	}
	if event := readEvent(t, conn); event["type"] != string(EventTypePong) {
		t.Fatalf("expected pong, got %v", event["type"])
	}

	hub.PublishFallback("", FallbackEvent{Strategy: "llm", Reason: "timeout"})
	hub.PublishAnalysis("", AnalysisEvent{OverallScore: 90})
	hub.PublishAnalysis("", AnalysisEvent{OverallScore: 20})

	event := readEvent(t, conn)
	data := event["data"].(map[string]interface{})
	if event["type"] != string(EventTypeAnalysisCompleted) || data["overall_score"] != 20.0 {
		t.Fatalf("expected the low-score analysis only, got %v", event)
	}
}

func TestEventFilter(t *testing.T) {
	limit := 60.0
	tests := []struct {
		name   string
		filter EventFilter
		event  AnalysisEvent
		want   bool
	}{
		{"empty filter", EventFilter{}, AnalysisEvent{OverallScore: 99}, true},
		{"above max score", EventFilter{MaxScore: &limit}, AnalysisEvent{OverallScore: 61}, false},
		{"at max score", EventFilter{MaxScore: &limit}, AnalysisEvent{OverallScore: 60}, true},
		{"critical only without gaps", EventFilter{CriticalGapsOnly: true}, AnalysisEvent{}, false},
		{"critical only with gaps", EventFilter{CriticalGapsOnly: true}, AnalysisEvent{CriticalGaps: 2}, true},
		{"source mismatch", EventFilter{Sources: []string{"llm"}}, AnalysisEvent{Source: "rule_based"}, false},
		{"source match", EventFilter{Sources: []string{"llm", "rule_based"}}, AnalysisEvent{Source: "rule_based"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.matches(tt.event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	_, srv := startHub(t, &HubConfig{Username: "admin", Password: "secret"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected unauthenticated dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
	dial(t, srv, header)
}

func TestMaxConnections(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{MaxConnections: 1})
	dial(t, srv, nil)
	waitForClients(t, hub, 1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second connection to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(&HubConfig{AllowedOrigins: []string{"https://dash.example.com"}}, zap.NewNop())

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://dash.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := hub.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := ClientIP(r); got != "10.0.0.1:1234" {
		t.Errorf("expected remote addr, got %s", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %s", got)
	}
}
