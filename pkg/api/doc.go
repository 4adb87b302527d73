// Package api defines the shared data types for the pairing service
//
// This package contains the types used across the session orchestrator
// and the HTTP surface, including session identifiers, session statuses,
// stream events, and response messages
package api
