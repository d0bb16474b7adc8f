package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeAnalysisCompleted is sent after every successful analysis
	EventTypeAnalysisCompleted EventType = "analysis_completed"
	// EventTypeLLMFallback is sent when the external model failed and the rule engine answered
	EventTypeLLMFallback EventType = "llm_fallback"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// AnalysisEvent summarizes a finished analysis. It never carries document text.
type AnalysisEvent struct {
	ReportID        string  `json:"report_id,omitempty"`
	DocumentLength  int     `json:"document_length"`
	DocumentSHA256  string  `json:"document_sha256"`
	OverallScore    float64 `json:"overall_score"`
	GapCount        int     `json:"gap_count"`
	CriticalGaps    int     `json:"critical_gaps"`
	Source          string  `json:"source"`
	FellBack        bool    `json:"fell_back"`
	TaxonomyVersion string  `json:"taxonomy_version"`
	DurationMS      float64 `json:"duration_ms"`
}

// FallbackEvent records why the external strategy was abandoned
type FallbackEvent struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows analysis events
type EventFilter struct {
	MaxScore         *float64 `json:"max_score,omitempty"`
	Sources          []string `json:"sources,omitempty"`
	CriticalGapsOnly bool     `json:"critical_gaps_only,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastDisconnectTime time.Time `json:"last_disconnect_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}
