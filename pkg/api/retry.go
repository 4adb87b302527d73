package api

// RetryConfig controls reconnect behavior for a pairing session
type RetryConfig struct {
	MaxRetries  int
	BackoffMs   int64
	MaxBackoff  int64
	BackoffType string
}

const (
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

const (
	Second int64 = 1000
	Minute       = Second * 60
)
