// Package clienttest provides a scriptable fake protocol driver for
// exercising the orchestrator without a live connection
package clienttest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hansbyte/pairgate/internal/client"
)

type (
	// Driver hands out fake clients through a client.Factory and keeps
	// every client it built so tests can script each attempt
	Driver struct {
		clients   []*Client
		createErr error
		builtCh   chan *Client
		mu        sync.Mutex
	}

	// Client is a scriptable fake implementation of client.Client
	Client struct {
		cfg     client.Config
		handler client.Handler

		code       string
		codeErr    error
		connectErr error
		sendErr    error

		connected    bool
		closed       bool
		codeRequests []string
		sent         []Message

		connectCh chan struct{}
		codeCh    chan string
		sendCh    chan Message
		mu        sync.Mutex
	}

	// Message records a SendText delivery
	Message struct {
		To   client.JID
		Body string
	}
)

var _ client.Client = (*Client)(nil)

// NewDriver creates a fake driver whose Factory can be handed to the
// orchestrator
func NewDriver() *Driver {
	return &Driver{
		builtCh: make(chan *Client, 16),
	}
}

// Factory builds the next fake client. Pass the method value anywhere a
// client.Factory is expected
func (d *Driver) Factory(cfg client.Config) (client.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	c := &Client{
		cfg:       cfg,
		connectCh: make(chan struct{}, 1),
		codeCh:    make(chan string, 1),
		sendCh:    make(chan Message, 16),
	}
	d.clients = append(d.clients, c)
	select {
	case d.builtCh <- c:
	default:
	}
	return c, nil
}

// SetCreateError makes subsequent Factory calls fail
func (d *Driver) SetCreateError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createErr = err
}

// WaitForClient blocks until the factory builds another client or the
// timeout expires
func (d *Driver) WaitForClient(timeout time.Duration) (*Client, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-d.builtCh:
		return c, true
	case <-timer.C:
		return nil, false
	}
}

// Clients returns every client the factory built, in order
func (d *Driver) Clients() []*Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]*Client, len(d.clients))
	copy(result, d.clients)
	return result
}

func (c *Client) SetHandler(h client.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	select {
	case c.connectCh <- struct{}{}:
	default:
	}
	return nil
}

// PairingCode returns the scripted code or error and records the number
func (c *Client) PairingCode(
	_ context.Context, number string,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codeRequests = append(c.codeRequests, number)
	select {
	case c.codeCh <- number:
	default:
	}
	if c.codeErr != nil {
		return "", c.codeErr
	}
	if c.code == "" {
		return "ABCD-1234", nil
	}
	return c.code, nil
}

func (c *Client) SendText(
	_ context.Context, to client.JID, body string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	msg := Message{To: to, Body: body}
	c.sent = append(c.sent, msg)
	select {
	case c.sendCh <- msg:
	default:
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// SetPairingCode scripts the code returned by PairingCode
func (c *Client) SetPairingCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
}

// SetPairingError makes PairingCode fail
func (c *Client) SetPairingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codeErr = err
}

// SetConnectError makes Connect fail
func (c *Client) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// SetSendError makes SendText fail
func (c *Client) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// EmitOpen delivers a connection open event to the handler
func (c *Client) EmitOpen() {
	c.emit(client.Event{
		Kind:  client.EventConnection,
		State: client.ConnOpen,
	})
}

// EmitClosed delivers a connection closed event carrying the given JSON
// reason payload
func (c *Client) EmitClosed(reason string) {
	c.emit(client.Event{
		Kind:   client.EventConnection,
		State:  client.ConnClosed,
		Reason: json.RawMessage(reason),
	})
}

// EmitCredentials delivers a credentials update event
func (c *Client) EmitCredentials() {
	c.emit(client.Event{Kind: client.EventCredentials})
}

// WaitForConnect blocks until Connect is called or the timeout expires
func (c *Client) WaitForConnect(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.connectCh:
		return true
	case <-timer.C:
		return c.Connected()
	}
}

// WaitForPairingRequest blocks until PairingCode is called or the
// timeout expires, returning the requested number
func (c *Client) WaitForPairingRequest(
	timeout time.Duration,
) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case number := <-c.codeCh:
		return number, true
	case <-timer.C:
		return "", false
	}
}

// WaitForSend blocks until a message is sent or the timeout expires
func (c *Client) WaitForSend(timeout time.Duration) (Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-c.sendCh:
		return msg, true
	case <-timer.C:
		return Message{}, false
	}
}

// Config returns the client.Config the factory received
func (c *Client) Config() client.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Connected reports whether Connect was called
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Closed reports whether Close was called
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// PairingRequests returns the numbers passed to PairingCode
func (c *Client) PairingRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.codeRequests))
	copy(result, c.codeRequests)
	return result
}

// Sent returns every message delivered through SendText
func (c *Client) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Message, len(c.sent))
	copy(result, c.sent)
	return result
}

func (c *Client) emit(e client.Event) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h.HandleEvent(e)
	}
}
