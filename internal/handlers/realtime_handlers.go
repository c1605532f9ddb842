package handlers

import (
	"net/http"
	"time"

	"bar_backoffice/internal/realtime"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsBuffer       = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RealtimeHandler serves the floor snapshot and the change stream.
type RealtimeHandler struct {
	floors *services.FloorRegistry
	hub    *realtime.Hub
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(floors *services.FloorRegistry, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{floors: floors, hub: hub}
}

// GetFloor returns the latest refreshed snapshot of the caller's establishment.
func (h *RealtimeHandler) GetFloor(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	view, err := h.floors.View(c.Request.Context(), sess.EstablishmentID)
	if err != nil {
		respondServiceError(c, "GetFloor: Error loading floor view for establishment "+utils.Int64ToStr(sess.EstablishmentID), err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

// StreamChanges upgrades to a WebSocket and pushes every change notification
// of the caller's establishment. Clients re-fetch on each message.
func (h *RealtimeHandler) StreamChanges(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.LogError(err, "StreamChanges: websocket upgrade failed")
		return
	}
	defer conn.Close()

	changes := make(chan realtime.Change, wsBuffer)
	handle := h.hub.Subscribe(realtime.EntityAll, func(ch realtime.Change) {
		if !ch.Concerns(sess.EstablishmentID) {
			return
		}
		select {
		case changes <- ch:
		default:
			// a slow client missed a notification; the next one still triggers a re-fetch
		}
	})
	defer h.hub.Unsubscribe(handle)

	// the read loop only detects the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	utils.LogDebug("websocket subscriber connected", map[string]interface{}{"establishment_id": sess.EstablishmentID, "user_id": sess.UserID})
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ch := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ch); err != nil {
				utils.LogWarn("StreamChanges: write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
