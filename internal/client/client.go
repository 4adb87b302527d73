// Package client defines the boundary to the messaging protocol. The
// protocol itself is owned by pluggable drivers; this package holds the
// Client interface they implement, the driver registry, and helpers for
// interpreting driver events
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hansbyte/pairgate/internal/authstate"
)

type (
	// Client is a single connection to the messaging protocol, bound to
	// one session's credential state
	Client interface {
		// SetHandler registers the event handler for this client. A
		// client has exactly one handler, and it must be set before
		// Connect
		SetHandler(Handler)

		// Connect starts connecting. It returns once the attempt is
		// underway; completion or failure arrives as a connection event
		Connect(ctx context.Context) error

		// PairingCode requests a pairing code for the given number. The
		// client never displays the code itself
		PairingCode(ctx context.Context, number string) (string, error)

		// SendText delivers a text message to the given address
		SendText(ctx context.Context, to JID, body string) error

		// Close tears the connection down. Safe to call more than once
		Close() error
	}

	// Factory constructs a driver-specific Client from a Config
	Factory func(Config) (Client, error)

	// Config carries everything a driver needs to build a client
	Config struct {
		State      *authstate.State
		Persist    authstate.PersistFunc
		Dir        string
		ClientName string
		Log        *slog.Logger
	}

	// JID addresses a user on the messaging protocol
	JID struct {
		User   string
		Server string
	}
)

var (
	ErrUnknownDriver = errors.New("unknown client driver")
	ErrNoHandler     = errors.New("no event handler registered")
	ErrClosed        = errors.New("client closed")
)

var (
	driverMu sync.RWMutex
	drivers  = map[string]Factory{}
)

// Register makes a driver factory available under the given name,
// typically from the driver package's init
func Register(name string, f Factory) {
	driverMu.Lock()
	defer driverMu.Unlock()
	drivers[name] = f
}

// New builds a Client using the named driver
func New(name string, cfg Config) (Client, error) {
	driverMu.RLock()
	f, ok := drivers[name]
	driverMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	return f(cfg)
}

// Drivers returns the registered driver names, sorted
func Drivers() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewJID forms a protocol address from a user identity and domain
func NewJID(user, server string) JID {
	return JID{User: user, Server: server}
}

func (j JID) String() string {
	return j.User + "@" + j.Server
}
