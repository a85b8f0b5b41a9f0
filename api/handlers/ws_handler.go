package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/internal/broadcast"
)

// WSHandler upgrades HTTP connections and hands them to the broadcast hub.
type WSHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewWSHandler creates a new WSHandler instance. Allowed origins come from
// the server's CORS configuration.
func NewWSHandler(hub *broadcast.Hub, origins []string, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		log: log,
	}
}

// originChecker builds the upgrade origin policy. "*" (or an empty list)
// allows any origin. Requests without an Origin header are always allowed:
// native mobile clients and the simulator do not send one.
func originChecker(origins []string) func(r *http.Request) bool {
	wildcard := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			wildcard = true
			continue
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Subscribe upgrades the connection and registers it with the hub.
func (h *WSHandler) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	h.hub.HandleConnection(conn)
}
