package client

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

// statusCodePaths are probed in order against a close reason payload.
// Drivers nest transport errors differently; the first match wins
var statusCodePaths = []string{
	"error.output.statusCode",
	"output.statusCode",
	"statusCode",
}

// CloseStatus extracts the numeric status code from a close event's
// reason payload. The second result is false when no code is present
func CloseStatus(reason json.RawMessage) (int, bool) {
	if len(reason) == 0 {
		return 0, false
	}
	for _, path := range statusCodePaths {
		if r := gjson.GetBytes(reason, path); r.Exists() {
			return int(r.Int()), true
		}
	}
	return 0, false
}

// IsLoggedOut reports whether a close status means the stored session is
// unauthorized and a new pairing is required
func IsLoggedOut(status int) bool {
	return status == http.StatusUnauthorized
}
