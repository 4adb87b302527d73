// Package session implements the pairing session orchestrator
//
// This package contains the main session logic for driving a messaging
// client from pairing-code issuance through credential export, managing
// bounded reconnect attempts, and fanning session events out to stream
// subscribers
package session
