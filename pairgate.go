// Package pairgate identifies the pairing gateway service
package pairgate

const (
	// Name is the service name used in logs and health responses
	Name = "pairgate"

	// Version is the service version reported by the health endpoint
	Version = "1.0.0"
)
