package api

import "regexp"

// SessionID is a digits-only identifier for a pairing session, derived
// from a phone number. It names the session's credential directory and
// forms the user part of the protocol address
type SessionID string

// NonDigitChars matches characters not permitted in session IDs. Valid
// characters are digits only
var NonDigitChars = regexp.MustCompile(`[^0-9]`)

// SanitizeNumber strips everything but digits from a raw phone number.
// The result may be empty; callers fall back to a default identifier
func SanitizeNumber(number string) SessionID {
	return SessionID(NonDigitChars.ReplaceAllString(number, ""))
}

// IsValid returns whether the ID is non-empty and digits-only
func (id SessionID) IsValid() bool {
	return id != "" && !NonDigitChars.MatchString(string(id))
}
