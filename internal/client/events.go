package client

import "encoding/json"

type (
	// Handler receives client events. Drivers invoke it synchronously,
	// in delivery order
	Handler interface {
		HandleEvent(Event)
	}

	// HandlerFunc adapts a function to the Handler interface
	HandlerFunc func(Event)

	// Event is a connection or credentials notification from a driver.
	// Reason is the driver's close payload, opaque except for the
	// status code extracted by CloseStatus
	Event struct {
		Kind   EventKind       `json:"kind"`
		State  ConnState       `json:"state,omitempty"`
		Reason json.RawMessage `json:"reason,omitempty"`
	}

	// EventKind distinguishes the notification streams a driver emits
	EventKind string

	// ConnState is the connection lifecycle phase carried by a
	// connection event
	ConnState string
)

const (
	EventConnection  EventKind = "connection"
	EventCredentials EventKind = "credentials"
)

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosed     ConnState = "closed"
)

func (f HandlerFunc) HandleEvent(e Event) {
	f(e)
}
