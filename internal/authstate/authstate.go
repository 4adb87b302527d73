// Package authstate manages the on-disk credential state for a pairing
// session. The layout inside the session directory is dictated by the
// protocol client; this package only owns loading, persisting, and
// locating the state file
package authstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type (
	// State is the mutable credential material for one session. Client
	// drivers update it while pairing; the orchestrator persists it on
	// every credentials event. Drivers must finish mutating the state
	// before emitting the event that triggers a persist
	State struct {
		Registered bool              `json:"registered"`
		ID         string            `json:"id,omitempty"`
		Keys       map[string]string `json:"keys,omitempty"`
		PairedAt   time.Time         `json:"paired_at,omitempty"`
	}

	// PersistFunc writes the current state to the session directory
	PersistFunc func() error
)

// CredsFileName is the credential file the export step reads
const CredsFileName = "creds.json"

const (
	dirPerm  = 0o755
	filePerm = 0o600
)

var ErrCorruptState = errors.New("corrupt credential state")

// Acquire loads or initializes credential state under dir, creating the
// directory if needed. It returns the state and a persist callback bound
// to that state and directory
func Acquire(dir string) (*State, PersistFunc, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, nil, err
	}

	st := &State{}
	path := CredsPath(dir)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// fresh session, nothing persisted yet
	case err != nil:
		return nil, nil, err
	default:
		if err := json.Unmarshal(data, st); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
		}
	}

	persist := func() error {
		return save(path, st)
	}
	return st, persist, nil
}

// SetKey records a named piece of key material on the state
func (st *State) SetKey(name, value string) {
	if st.Keys == nil {
		st.Keys = map[string]string{}
	}
	st.Keys[name] = value
}

// CredsPath returns the location of the credential file within dir
func CredsPath(dir string) string {
	return filepath.Join(dir, CredsFileName)
}

// Exists reports whether a credential file has been persisted in dir
func Exists(dir string) bool {
	_, err := os.Stat(CredsPath(dir))
	return err == nil
}

// save writes the state atomically so a crash mid-write cannot leave a
// truncated credential file behind
func save(path string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
