package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hansbyte/pairgate/internal/session"
	"github.com/hansbyte/pairgate/pkg/api"
)

// Messages returned to pairing callers. The unauthorized and missing
// credential texts are part of the endpoint's contract
const (
	msgLoggedOut     = "Logged out or unauthorized. New pairing required."
	msgNoCredentials = "No credentials file"
	msgExhausted     = "Unable to reconnect after multiple attempts"
	msgPairFailed    = "Failed to request pairing code"
	msgExportFailed  = "Failed to export credentials"
	msgAborted       = "Server is shutting down"
	msgExported      = "Session already paired; credentials exported"
	msgSessionActive = "A pairing session for this number is in progress"
)

const initFailedCode = "client_init_failed"

func (s *Server) handleCode(c *gin.Context) {
	id := api.SanitizeNumber(c.Query("number"))
	if !id.IsValid() {
		id = api.SanitizeNumber(s.cfg.DefaultNumber)
	}

	out, err := s.orc.Start(id)
	switch {
	case errors.Is(err, session.ErrSessionActive):
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Message: msgSessionActive,
		})
		return
	case errors.Is(err, session.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, api.InitErrorResponse{
			Code:  initFailedCode,
			Error: err.Error(),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: "Failed to start session",
			Error:   err.Error(),
		})
		return
	}

	// the caller hanging up must not cancel the session, so block on
	// the outcome channel rather than the request context
	res := <-out
	s.respond(c, res)
}

func (s *Server) respond(c *gin.Context, res session.Outcome) {
	switch res.Kind {
	case session.OutcomeCode:
		c.JSON(http.StatusOK, api.CodeResponse{Code: res.Code})

	case session.OutcomeExported:
		c.JSON(http.StatusOK, api.MessageResponse{Message: msgExported})

	case session.OutcomeUnauthorized:
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{
			Message: msgLoggedOut,
		})

	case session.OutcomeNoCreds:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: msgNoCredentials,
		})

	case session.OutcomeExhausted:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: msgExhausted,
		})

	case session.OutcomePairFailed:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: msgPairFailed,
			Error:   errString(res.Err),
		})

	case session.OutcomeExportFailed:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: msgExportFailed,
			Error:   errString(res.Err),
		})

	case session.OutcomeInitFailed:
		c.JSON(http.StatusServiceUnavailable, api.InitErrorResponse{
			Code:  initFailedCode,
			Error: errString(res.Err),
		})

	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Message: msgAborted,
			Error:   errString(res.Err),
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
