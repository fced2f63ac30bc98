// Package protocol defines the wire messages exchanged with the browser over
// the relay WebSocket. Outbound frames are small JSON objects; the inbound
// channel carries a plain text frame whose entire content is the utterance.
package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	TypeContent = "content"
	TypeDone    = "done"
)

// DecodeError describes a malformed inbound frame. It is logged and the frame
// dropped; it never terminates the session.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badFrame(code, message string) *DecodeError {
	return &DecodeError{Code: code, Message: message}
}

// ServerContent carries one streamed delta of the agent's reply. The client
// concatenates content payloads in arrival order to reconstruct the full turn.
type ServerContent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ServerDone marks the end of an agent turn. Sent exactly once per turn, after
// every content frame for that turn.
type ServerDone struct {
	Type string `json:"type"`
}

// EncodeContent encodes one delta as a content frame.
func EncodeContent(text string) ([]byte, error) {
	return json.Marshal(ServerContent{Type: TypeContent, Content: text})
}

// EncodeDone encodes the end-of-turn frame.
func EncodeDone() ([]byte, error) {
	return json.Marshal(ServerDone{Type: TypeDone})
}

// DecodeInbound extracts the utterance from an inbound websocket frame.
// Only text frames are valid; the frame body is the utterance itself.
func DecodeInbound(messageType int, data []byte) (string, error) {
	if messageType != websocket.TextMessage {
		return "", badFrame("bad_frame", "inbound frames must be text")
	}
	if !utf8.Valid(data) {
		return "", badFrame("bad_frame", "inbound frame is not valid utf-8")
	}
	return string(data), nil
}
