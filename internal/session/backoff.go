package session

import (
	"math"
	"time"

	"github.com/hansbyte/pairgate/pkg/api"
)

type backoffCalculator func(baseDelay int64, retryCount int) int64

var backoffCalculators = map[string]backoffCalculator{
	api.BackoffTypeFixed: func(baseDelay int64, _ int) int64 {
		return baseDelay
	},
	api.BackoffTypeLinear: func(baseDelay int64, retryCount int) int64 {
		return baseDelay * int64(retryCount+1)
	},
	api.BackoffTypeExponential: func(baseDelay int64, retryCount int) int64 {
		return int64(float64(baseDelay) * math.Pow(2, float64(retryCount)))
	},
}

// Backoff returns how long to wait before reconnect attempt retryCount+1,
// capped at the configured maximum
func Backoff(cfg api.RetryConfig, retryCount int) time.Duration {
	calculator, ok := backoffCalculators[cfg.BackoffType]
	if !ok {
		calculator = backoffCalculators[api.BackoffTypeFixed]
	}
	delay := min(calculator(cfg.BackoffMs, retryCount), cfg.MaxBackoff)
	return time.Duration(delay) * time.Millisecond
}
