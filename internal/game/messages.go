package game

import (
	"encoding/json"
	"fmt"
)

// Message type for WebSocket communication between the device page and the server.
type MessageType string

const (
	MsgTypeHello  MessageType = "hello"  // Client announces itself and opens a session
	MsgTypeState  MessageType = "state"  // Server sends the full round state
	MsgTypeMotion MessageType = "motion" // Client reports an acceleration sample
	MsgTypePaint  MessageType = "paint"  // Server paints a batch of cells
	MsgTypeBanner MessageType = "banner" // Server shows the win/lose banner
	MsgTypePing   MessageType = "ping"   // Server pings client to measure RTT
	MsgTypePong   MessageType = "pong"   // Client responds to ping
	MsgTypeError  MessageType = "error"  // Server sends an error message
)

// WsMessage represents a WebSocket message.
type WsMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWsMessage creates a new WsMessage with a marshaled payload.
func NewWsMessage(msgType MessageType, payload interface{}) (WsMessage, error) {
	if payload == nil {
		return WsMessage{Type: msgType}, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return WsMessage{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return WsMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}, nil
}

// Parse unmarshals the message payload into one of the message types (HelloMessage, StateMessage, etc.)
func (m *WsMessage) Parse() (any, error) {
	var target any
	switch m.Type {
	case MsgTypeHello:
		target = &HelloMessage{}
	case MsgTypeState:
		target = &StateMessage{}
	case MsgTypeMotion:
		target = &MotionMessage{}
	case MsgTypePaint:
		target = &PaintMessage{}
	case MsgTypeBanner:
		target = &BannerMessage{}
	case MsgTypePing:
		target = &PingMessage{}
	case MsgTypePong:
		target = &PongMessage{}
	case MsgTypeError:
		target = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", m.Type)
	}

	if len(m.Payload) == 0 {
		return target, nil
	}

	err := json.Unmarshal(m.Payload, target)
	return target, err
}

// HelloMessage is the payload for MsgTypeHello
type HelloMessage struct {
	DeviceName string `json:"device_name"`
}

// StateMessage is the payload for MsgTypeState
type StateMessage struct {
	Round RoundView `json:"round"`
}

// MotionMessage is the payload for MsgTypeMotion. Axes are in g.
type MotionMessage struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Source string  `json:"source,omitempty"` // "devicemotion" or "button"
}

// CellPaint is one painted cell.
type CellPaint struct {
	Col    int    `json:"col"`
	Row    int    `json:"row"`
	Symbol Symbol `json:"symbol"`
}

// PaintMessage is the payload for MsgTypePaint
type PaintMessage struct {
	Cells []CellPaint `json:"cells"`
}

// BannerMessage is the payload for MsgTypeBanner. An empty Text clears the banner.
type BannerMessage struct {
	Text string `json:"text"`
	Win  bool   `json:"win"`
}

// PingMessage is the payload for MsgTypePing
type PingMessage struct {
	ServerTime int64 `json:"server_time"` // Nanoseconds since Unix epoch
}

// PongMessage is the payload for MsgTypePong
type PongMessage struct {
	ServerTime int64 `json:"server_time"` // Same value from Ping
	ClientTime int64 `json:"client_time"` // Client's own timestamp
}

// ErrorMessage is the payload for MsgTypeError
type ErrorMessage struct {
	Message string `json:"message"`
}
