// Package server implements the HTTP API server for the pairing service
//
// This package provides the pairing-code endpoint, health checks, the
// Prometheus metrics endpoint, the embedded pairing page, and WebSocket
// streaming of session events
package server
