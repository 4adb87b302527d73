package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hansbyte/pairgate/pkg/api"
	"github.com/hansbyte/pairgate/pkg/log"
)

type errStub string

func TestSessionID(t *testing.T) {
	attr := log.SessionID(api.SessionID("15551234567"))
	assertAttrEqual(t, attr, "session_id", "15551234567")
}

func TestDriver(t *testing.T) {
	attr := log.Driver("sim")
	assertAttrEqual(t, attr, "driver", "sim")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.SessionExported)
	assertAttrEqual(t, attr, "status", "exported")
}

func TestAttempt(t *testing.T) {
	attr := log.Attempt(3)
	assert.Equal(t, "attempt", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestStatusCode(t *testing.T) {
	attr := log.StatusCode(401)
	assert.Equal(t, "status_code", attr.Key)
	assert.Equal(t, int64(401), attr.Value.Int64())
}

func TestTokenLenHidesValue(t *testing.T) {
	attr := log.TokenLen("secret-token")
	assert.Equal(t, "token_len", attr.Key)
	assert.Equal(t, int64(12), attr.Value.Int64())
	assert.NotContains(t, attr.Value.String(), "secret")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
