package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/realtime"
	"bar_backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func realtimeRouter(floors *services.FloorRegistry, hub *realtime.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewRealtimeHandler(floors, hub)
	g := r.Group("/", withSession(waiter))
	g.GET("/floor", h.GetFloor)
	g.GET("/ws", h.StreamChanges)
	return r
}

func TestRealtimeHandler_GetFloor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls := new(MockLedgerService)
	ls.On("Floor", mock.Anything, mock.Anything).Return(&services.FloorState{
		Tables:      []models.Table{{ID: 1, EstablishmentID: 1, Number: "T1", Status: models.TableStatusFree}},
		Kitchen:     []models.KitchenTicket{},
		WaiterCalls: []models.WaiterCall{},
	}, nil)
	hub := realtime.NewHub()
	floors := services.NewFloorRegistry(ctx, ls, hub)
	defer floors.Close()

	w := doRequest(realtimeRouter(floors, hub), http.MethodGet, "/floor", "")

	require.Equal(t, http.StatusOK, w.Code)
	var snap services.FloorSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.EstablishmentID)
	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "T1", snap.Tables[0].Number)
}

func TestRealtimeHandler_StreamChanges(t *testing.T) {
	hub := realtime.NewHub()
	srv := httptest.NewServer(realtimeRouter(nil, hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(realtime.Change{Entity: realtime.EntityOrderLines, EstablishmentID: 2, Operation: "UPDATE"})
	hub.Publish(realtime.Change{Entity: realtime.EntityTables, EstablishmentID: 1, Operation: "UPDATE"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got realtime.Change
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, realtime.EntityTables, got.Entity)
	assert.Equal(t, int64(1), got.EstablishmentID)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
