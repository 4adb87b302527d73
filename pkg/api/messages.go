package api

type (
	// CodeResponse carries a freshly issued pairing code
	CodeResponse struct {
		Code string `json:"code"`
	}

	// MessageResponse contains a simple message result
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}

	// InitErrorResponse is returned when the protocol client could not
	// be constructed or failed before its listeners attached
	InitErrorResponse struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
)
