package api

// SessionStatus represents the current state of a pairing session
type SessionStatus string

const (
	SessionPending      SessionStatus = "pending"
	SessionCodeIssued   SessionStatus = "code_issued"
	SessionConnected    SessionStatus = "connected"
	SessionExported     SessionStatus = "exported"
	SessionUnauthorized SessionStatus = "unauthorized"
	SessionFailed       SessionStatus = "failed"
)
