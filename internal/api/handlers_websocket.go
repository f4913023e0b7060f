package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are already filtered by the CORS middleware
		return true
	},
}

// HandleWebSocket streams engine events to the client
// @Summary WebSocket endpoint for engine events
// @Description Establishes a WebSocket connection that receives patch, integration and violation events
// @Tags websocket
// @Produce json
// @Success 101 {string} string "Switching Protocols"
// @Router /ws/events [get]
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return err
	}

	client := &Client{
		hub:  s.wsHub,
		conn: ws,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		return ws.Close()
	}

	go client.writePump()
	go client.readPump()

	return nil
}

// GetWebSocketStats returns WebSocket connection statistics
// @Summary Get WebSocket statistics
// @Tags websocket
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ws/stats [get]
func (s *Server) GetWebSocketStats(c echo.Context) error {
	stats := map[string]interface{}{
		"connected_clients": s.wsHub.ClientCount(),
		"status":            "operational",
	}
	return c.JSON(http.StatusOK, stats)
}
