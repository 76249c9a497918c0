// Package protocol defines the websocket messages exchanged between a
// browser and a filterd session.
//
// Frames are JSON text messages with a "type" discriminator.
//
// Client to server:
//
//	{"type":"input","name":"q","value":"red shoes"}
//	{"type":"navigate","href":"/products?q=boots"}
//	{"type":"flush"}
//
// Server to client:
//
//	{"type":"url","mode":"replace","href":"/products?q=red+shoes","scroll":false}
//	{"type":"state","values":{"q":"red shoes","tags":["sale"]}}
//	{"type":"error","code":"F002","message":"Unknown filter"}
package protocol

import (
	"encoding/json"

	"github.com/vango-dev/filterbind/internal/errors"
)

// Message types.
const (
	TypeInput    = "input"
	TypeNavigate = "navigate"
	TypeFlush    = "flush"

	TypeURL   = "url"
	TypeState = "state"
	TypeError = "error"
)

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Href  string          `json:"href,omitempty"`
}

// ServerMessage is a frame sent to the browser.
type ServerMessage struct {
	Type    string         `json:"type"`
	Mode    string         `json:"mode,omitempty"`
	Href    string         `json:"href,omitempty"`
	Scroll  bool           `json:"scroll"`
	Values  map[string]any `json:"values,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// DecodeClient parses and validates a client frame.
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, errors.New("F004").Wrap(err)
	}

	switch msg.Type {
	case TypeInput:
		if msg.Name == "" {
			return ClientMessage{}, errors.New("F004").WithDetail("input without name")
		}
		if len(msg.Value) == 0 {
			return ClientMessage{}, errors.New("F004").WithDetailf("input %q without value", msg.Name)
		}
	case TypeNavigate:
		if msg.Href == "" {
			return ClientMessage{}, errors.New("F004").WithDetail("navigate without href")
		}
	case TypeFlush:
	default:
		return ClientMessage{}, errors.New("F005").WithDetailf("%q", msg.Type)
	}
	return msg, nil
}

// NewURLMessage builds a frame telling the client to update its address bar.
func NewURLMessage(mode, href string, scroll bool) ServerMessage {
	return ServerMessage{Type: TypeURL, Mode: mode, Href: href, Scroll: scroll}
}

// NewStateMessage builds a frame carrying the current filter values.
func NewStateMessage(values map[string]any) ServerMessage {
	return ServerMessage{Type: TypeState, Values: values}
}

// NewErrorMessage builds an error frame from err. Coded errors keep their code.
func NewErrorMessage(err error) ServerMessage {
	msg := ServerMessage{Type: TypeError, Message: err.Error()}
	var fe *errors.Error
	if errors.As(err, &fe) {
		msg.Code = fe.Code
		msg.Message = fe.Message
		if fe.Detail != "" {
			msg.Message += ": " + fe.Detail
		}
	}
	return msg
}
