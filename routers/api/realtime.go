package api

import (
	"context"
	"net/http"
	"time"

	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ScriptFeed: GET /v1/api/scripts/:script_id/ws
//
// Pushes a snapshot of the script, then every change of the script and its
// refinements, read from the database.
func (h *Handler) ScriptFeed(c *gin.Context) {
	p := principalFrom(c)
	script, err := h.Watcher.Authorize(c.Request.Context(), p, c.Param("script_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", zap.String("script_id", script.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the client never sends anything; reading is how a close is noticed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := h.Logger.With(zap.String("script_id", script.ID), zap.String("user_id", p.UserID))
	log.Debug("change feed opened")

	err = h.Watcher.Watch(ctx, script, func(ev service.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	})
	if err != nil {
		log.Debug("change feed write failed", zap.Error(err))
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	log.Debug("change feed closed")
}
