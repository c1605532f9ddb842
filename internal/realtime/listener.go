package realtime

import (
	"context"
	"fmt"
	"time"

	"bar_backoffice/pkg/utils"

	"github.com/lib/pq"
)

// NotifyChannel is the Postgres channel the schema triggers notify on.
const NotifyChannel = "backoffice_changes"

// ListenPostgres relays Postgres NOTIFY payloads into the hub until ctx ends.
// After a reconnect notifications may have been missed, so a tenant-wide
// EntityAll change is published to force every consumer to refresh.
func ListenPostgres(ctx context.Context, dsn string, hub *Hub) error {
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			utils.LogError(err, "Postgres change listener lost its connection")
		case pq.ListenerEventReconnected:
			utils.LogInfo("Postgres change listener reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", NotifyChannel, err)
	}
	utils.LogInfo("Listening for database changes", map[string]interface{}{"channel": NotifyChannel})

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				hub.Publish(Change{Entity: EntityAll, Operation: "resync", At: time.Now()})
				continue
			}
			change, err := ParseNotification(n.Extra)
			if err != nil {
				utils.LogError(err, "Dropping malformed change notification")
				continue
			}
			hub.Publish(change)
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					utils.LogError(err, "Postgres change listener ping failed")
				}
			}()
		}
	}
}
