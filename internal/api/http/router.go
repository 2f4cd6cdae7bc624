// Package http is the HTTP boot surface: a health check and the single
// WebSocket upgrade route. The event channel is the one authoritative
// mutation path; there are no REST mutation endpoints, since a REST
// duplicate of the event channel would be a second, divergent path to
// the same state.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	wstransport "shogi-server/internal/transport/ws"
)

// NewRouter builds the gin.Engine serving /healthz and /ws.
func NewRouter(hub *wstransport.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", hub.HandleWS)

	return r
}
