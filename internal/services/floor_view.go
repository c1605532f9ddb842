package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/realtime"
	"bar_backoffice/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// FloorSnapshot is a consistent view of one establishment's floor.
type FloorSnapshot struct {
	EstablishmentID int64                  `json:"establishment_id"`
	Tables          []models.Table         `json:"tables"`
	Kitchen         []models.KitchenTicket `json:"kitchen"`
	WaiterCalls     []models.WaiterCall    `json:"waiter_calls"`
	Version         uint64                 `json:"version"`
	RefreshedAt     time.Time              `json:"refreshed_at"`
}

// FloorView is the read model dashboards poll. It is never patched: every
// change notification triggers a full Refresh.
type FloorView struct {
	ledger LedgerService
	sess   models.Session

	mu   sync.RWMutex
	snap FloorSnapshot

	trigger chan struct{}
	stop    context.CancelFunc
}

// NewFloorView creates an empty view for the establishment.
func NewFloorView(ledger LedgerService, establishmentID int64) *FloorView {
	return &FloorView{
		ledger:  ledger,
		sess:    models.Session{EstablishmentID: establishmentID, Role: models.RoleManager},
		snap:    FloorSnapshot{EstablishmentID: establishmentID},
		trigger: make(chan struct{}, 1),
	}
}

// Refresh reloads the floor from one snapshot and swaps it in on success.
func (v *FloorView) Refresh(ctx context.Context) error {
	state, err := v.ledger.Floor(ctx, v.sess)
	if err != nil {
		return fmt.Errorf("refreshing floor of establishment %d: %w", v.sess.EstablishmentID, err)
	}

	v.mu.Lock()
	v.snap = FloorSnapshot{
		EstablishmentID: v.sess.EstablishmentID,
		Tables:          state.Tables,
		Kitchen:         state.Kitchen,
		WaiterCalls:     state.WaiterCalls,
		Version:         v.snap.Version + 1,
		RefreshedAt:     time.Now(),
	}
	v.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the last successful refresh.
func (v *FloorView) Snapshot() FloorSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := v.snap
	out.Tables = make([]models.Table, len(v.snap.Tables))
	for i, t := range v.snap.Tables {
		t.Lines = append([]models.OrderLine(nil), t.Lines...)
		out.Tables[i] = t
	}
	out.Kitchen = append([]models.KitchenTicket(nil), v.snap.Kitchen...)
	out.WaiterCalls = append([]models.WaiterCall(nil), v.snap.WaiterCalls...)
	return out
}

// Invalidate schedules a refresh. Calls made while one is pending coalesce.
func (v *FloorView) Invalidate() {
	select {
	case v.trigger <- struct{}{}:
	default:
	}
}

// Start subscribes to the hub and refreshes on every change of this
// establishment until ctx is done. Tenant-wide resyncs are fanned out by the
// registry.
func (v *FloorView) Start(ctx context.Context, hub *realtime.Hub) {
	handle := hub.Subscribe(realtime.EntityAll, func(c realtime.Change) {
		if c.EstablishmentID == v.sess.EstablishmentID {
			v.Invalidate()
		}
	})

	go func() {
		defer hub.Unsubscribe(handle)
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.trigger:
				if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
					utils.LogError(err, "Floor refresh failed", map[string]interface{}{"establishment_id": v.sess.EstablishmentID})
				}
			}
		}
	}()
}

// Stop ends the refresh loop started by the registry.
func (v *FloorView) Stop() {
	if v.stop != nil {
		v.stop()
	}
}

// resyncConcurrency bounds how many views reload at once after a resync.
const resyncConcurrency = 4

// FloorRegistry lazily creates one FloorView per establishment.
type FloorRegistry struct {
	ctx    context.Context
	cancel context.CancelFunc
	ledger LedgerService
	hub    *realtime.Hub
	resync chan struct{}

	mu    sync.Mutex
	views map[int64]*FloorView
}

// NewFloorRegistry creates a registry whose views live until ctx ends or
// Close is called.
func NewFloorRegistry(ctx context.Context, ledger LedgerService, hub *realtime.Hub) *FloorRegistry {
	ctx, cancel := context.WithCancel(ctx)
	r := &FloorRegistry{
		ctx:    ctx,
		cancel: cancel,
		ledger: ledger,
		hub:    hub,
		resync: make(chan struct{}, 1),
		views:  make(map[int64]*FloorView),
	}
	r.watchResync()
	return r
}

// watchResync reloads every view when a change names no establishment, which
// is how the listener signals a reconnect.
func (r *FloorRegistry) watchResync() {
	handle := r.hub.Subscribe(realtime.EntityAll, func(c realtime.Change) {
		if c.EstablishmentID != 0 {
			return
		}
		select {
		case r.resync <- struct{}{}:
		default:
		}
	})

	go func() {
		defer r.hub.Unsubscribe(handle)
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-r.resync:
				if err := r.RefreshAll(r.ctx); err != nil && r.ctx.Err() == nil {
					utils.LogError(err, "Floor resync failed")
				}
			}
		}
	}()
}

// View returns the establishment's view, loading it on first use.
func (r *FloorRegistry) View(ctx context.Context, establishmentID int64) (*FloorView, error) {
	r.mu.Lock()
	v, ok := r.views[establishmentID]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	// load outside the lock; subscribe first so no change between the load
	// and the subscription is lost
	v = NewFloorView(r.ledger, establishmentID)
	viewCtx, cancel := context.WithCancel(r.ctx)
	v.stop = cancel
	v.Start(viewCtx, r.hub)
	if err := v.Refresh(ctx); err != nil {
		v.Stop()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.views[establishmentID]; ok {
		// a concurrent first request won
		v.Stop()
		return existing, nil
	}
	r.views[establishmentID] = v
	return v, nil
}

// RefreshAll reloads every loaded view, a few at a time.
func (r *FloorRegistry) RefreshAll(ctx context.Context) error {
	r.mu.Lock()
	views := make([]*FloorView, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resyncConcurrency)
	for _, v := range views {
		v := v
		g.Go(func() error {
			return v.Refresh(gctx)
		})
	}
	return g.Wait()
}

// Close stops every view's refresh loop and the resync watcher.
func (r *FloorRegistry) Close() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.views {
		v.Stop()
		delete(r.views, id)
	}
}
