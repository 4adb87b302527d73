package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/hansbyte/pairgate"
	"github.com/hansbyte/pairgate/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Service: app.Name,
		Version: app.Version,
	})
}
