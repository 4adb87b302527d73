package api

type (
	// SessionEvent is emitted by the orchestrator as a session moves
	// through the pairing lifecycle, and streamed to WebSocket clients
	SessionEvent struct {
		Type       EventType     `json:"type"`
		SessionID  SessionID     `json:"session_id"`
		Status     SessionStatus `json:"status"`
		Code       string        `json:"code,omitempty"`
		Attempt    int           `json:"attempt,omitempty"`
		StatusCode int           `json:"status_code,omitempty"`
		Error      string        `json:"error,omitempty"`
		Timestamp  int64         `json:"timestamp"`
	}

	EventType string
)

const (
	EventTypeSessionStarted   EventType = "session_started"
	EventTypeCodeIssued       EventType = "code_issued"
	EventTypeCredentialsSaved EventType = "credentials_saved"
	EventTypeConnectionOpen   EventType = "connection_open"
	EventTypeConnectionClosed EventType = "connection_closed"
	EventTypeRetryScheduled   EventType = "retry_scheduled"
	EventTypeSessionExported  EventType = "session_exported"
	EventTypeSessionFailed    EventType = "session_failed"
)
