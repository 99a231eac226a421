package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerline/signaling/internal/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus is a thin read of registry and connection-table sizes.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{
		Status:      "ok",
		Rooms:       s.core.RoomCount(),
		Connections: s.ConnectionCount(),
	})
}
