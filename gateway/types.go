package gateway

import "time"

// Value payloads travel as base64-encoded raw bytes; the gateway does not
// interpret symbol types.

// ValueResponse represents a symbol or handle read response
type ValueResponse struct {
	Symbol string `json:"symbol,omitempty"`
	Handle uint32 `json:"handle,omitempty"`
	Size   int    `json:"size"`
	Value  []byte `json:"value"`
}

// WriteValueRequest represents a write request body
type WriteValueRequest struct {
	Value []byte `json:"value"`
}

// WriteValueResponse represents a write response
type WriteValueResponse struct {
	Success bool   `json:"success"`
	Symbol  string `json:"symbol,omitempty"`
	Handle  uint32 `json:"handle,omitempty"`
	Written int    `json:"written"`
}

// AcquireHandleRequest represents a handle acquisition request
type AcquireHandleRequest struct {
	Symbol string `json:"symbol"`
}

// AcquireHandleResponse represents a handle acquisition response
type AcquireHandleResponse struct {
	Symbol string `json:"symbol"`
	Handle uint32 `json:"handle"`
}

// ReleaseHandleResponse represents a handle release response
type ReleaseHandleResponse struct {
	Success bool   `json:"success"`
	Handle  uint32 `json:"handle"`
}

// StateResponse represents device state information
type StateResponse struct {
	State       uint16 `json:"state"`
	StateName   string `json:"state_name"`
	DeviceState uint16 `json:"device_state"`
}

// InfoResponse represents session and device information
type InfoResponse struct {
	Target        string `json:"target"`
	NetID         string `json:"net_id"`
	SubPort       uint16 `json:"sub_port"`
	Port          uint32 `json:"port"`
	Open          bool   `json:"open"`
	DeviceName    string `json:"device_name,omitempty"`
	DeviceVersion string `json:"device_version,omitempty"`
	ServerUptime  string `json:"server_uptime"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Open      bool      `json:"open"`
	Timestamp time.Time `json:"timestamp"`
}

// VersionResponse represents gateway version information
type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// TimeoutRequest represents a timeout reconfiguration request
type TimeoutRequest struct {
	TimeoutMs int `json:"timeout_ms"`
}

// TimeoutResponse represents a timeout reconfiguration response
type TimeoutResponse struct {
	Success   bool `json:"success"`
	TimeoutMs int  `json:"timeout_ms"`
}

// StreamMessage represents messages exchanged over the WebSocket stream
type StreamMessage struct {
	Type      string            `json:"type"` // "subscribe", "unsubscribe", "data", "subscribed", "unsubscribed", "error"
	RequestID string            `json:"request_id,omitempty"`
	Symbols   []StreamSymbol    `json:"symbols,omitempty"`
	Interval  int               `json:"interval,omitempty"` // milliseconds
	Data      map[string][]byte `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// StreamSymbol names one symbol in a stream subscription
type StreamSymbol struct {
	Name string `json:"name"`
	Size uint32 `json:"size"`
}

// TagMessage is the JSON structure the MQTT publisher emits per tag
type TagMessage struct {
	Topic     string `json:"topic"`
	Symbol    string `json:"symbol"`
	Value     []byte `json:"value"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse represents a generic error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
