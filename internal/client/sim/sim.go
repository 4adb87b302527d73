// Package sim provides a simulated protocol driver. It pairs instantly
// and never leaves the process, which makes the service fully operable
// on a laptop with no protocol account
package sim

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/pkg/log"
)

// DriverName registers the simulator in the driver registry
const DriverName = "sim"

// eventDelay paces simulated notifications so callers observe the same
// async ordering a live connection produces
const eventDelay = 150 * time.Millisecond

// codeAlphabet excludes glyphs that read ambiguously when typed by hand
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Client simulates a protocol connection for one session
type Client struct {
	cfg     client.Config
	logger  *slog.Logger
	handler client.Handler
	mu      sync.Mutex
	closed  bool
}

var _ client.Client = (*Client)(nil)

func init() {
	client.Register(DriverName, New)
}

// New constructs a simulated client bound to the session's credential
// state
func New(cfg client.Config) (client.Client, error) {
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With(log.Driver(DriverName)),
	}, nil
}

func (c *Client) SetHandler(h client.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Connect starts the simulated connection. A registered session reaches
// the open state on its own; an unregistered one stays connecting until
// a pairing code is requested
func (c *Client) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return client.ErrClosed
	}
	if c.handler == nil {
		return client.ErrNoHandler
	}

	if c.cfg.State.Registered {
		go func() {
			time.Sleep(eventDelay)
			c.emit(client.Event{
				Kind:  client.EventConnection,
				State: client.ConnOpen,
			})
		}()
	}
	return nil
}

// PairingCode issues a fake code and schedules the credential update and
// connection open that a real pairing would produce
func (c *Client) PairingCode(
	_ context.Context, number string,
) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", client.ErrClosed
	}

	code, err := randomCode(8)
	if err != nil {
		return "", err
	}

	go func() {
		time.Sleep(eventDelay)
		c.register(number)
		c.emit(client.Event{Kind: client.EventCredentials})
		time.Sleep(eventDelay)
		c.emit(client.Event{
			Kind:  client.EventConnection,
			State: client.ConnOpen,
		})
	}()

	return code[:4] + "-" + code[4:], nil
}

func (c *Client) SendText(
	_ context.Context, to client.JID, body string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return client.ErrClosed
	}
	c.logger.Info("sim message delivered",
		slog.String("to", to.String()),
		slog.String("message_id", uuid.NewString()),
		slog.Int("body_len", len(body)))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// register marks the credential state paired. Persisting is the
// handler's job, triggered by the credentials event
func (c *Client) register(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.cfg.State
	st.Registered = true
	st.ID = number
	st.SetKey("noise", randomKey())
	st.SetKey("identity", randomKey())
	st.PairedAt = time.Now().UTC()
}

func (c *Client) emit(e client.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	h := c.handler
	c.mu.Unlock()
	h.HandleEvent(e)
}

func randomCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(b), nil
}

func randomKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}
