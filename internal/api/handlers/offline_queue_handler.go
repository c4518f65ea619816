// server/internal/api/handlers/offline_queue_handler.go
package handlers

import (
	"net/http"

	"spotmytrash-api-server/internal/offline"

	"github.com/gin-gonic/gin"
)

// OfflineQueueHandler shows captures waiting on local disk. Nothing uploads them.
type OfflineQueueHandler struct {
	Store *offline.Store
}

func (h *OfflineQueueHandler) ListQueued(c *gin.Context) {
	queued, err := h.Store.List()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read the offline queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dir": h.Store.Dir(), "count": len(queued), "captures": queued})
}
