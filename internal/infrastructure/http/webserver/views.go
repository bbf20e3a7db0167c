package webserver

import (
	"sync"
	"time"

	"github.com/alchemorsel/recipeview/internal/application/recipeview"
	"go.uber.org/zap"
)

// MountObserver is told how many views are mounted after every change
type MountObserver interface {
	SetMountedViews(n int)
}

type viewKey struct {
	session  string
	recipeID string
}

type viewEntry struct {
	view     *recipeview.View
	lastUsed time.Time
}

// ViewRegistry holds the mounted recipe views, one per session and recipe.
// A view lives from the page load that mounted it until it is replaced,
// unmounted, idle for longer than the idle TTL, or the registry closes.
type ViewRegistry struct {
	mu       sync.Mutex
	views    map[viewKey]*viewEntry
	idleTTL  time.Duration
	logger   *zap.Logger
	observer MountObserver
	now      func() time.Time
}

// NewViewRegistry creates an empty registry
func NewViewRegistry(idleTTL time.Duration, logger *zap.Logger, observer MountObserver) *ViewRegistry {
	return &ViewRegistry{
		views:    make(map[viewKey]*viewEntry),
		idleTTL:  idleTTL,
		logger:   logger.Named("views"),
		observer: observer,
		now:      time.Now,
	}
}

// Mount registers view for the session, closing the view it replaces
func (r *ViewRegistry) Mount(sessionID string, view *recipeview.View) {
	key := viewKey{session: sessionID, recipeID: view.ID()}

	r.mu.Lock()
	previous := r.views[key]
	r.views[key] = &viewEntry{view: view, lastUsed: r.now()}
	n := len(r.views)
	r.mu.Unlock()

	if previous != nil && previous.view != view {
		previous.view.Close()
	}
	r.observe(n)
}

// Get returns the session's mounted view for the recipe and marks it used
func (r *ViewRegistry) Get(sessionID, recipeID string) (*recipeview.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.views[viewKey{session: sessionID, recipeID: recipeID}]
	if !ok {
		return nil, false
	}
	entry.lastUsed = r.now()
	return entry.view, true
}

// Unmount closes and forgets one view
func (r *ViewRegistry) Unmount(sessionID, recipeID string) {
	key := viewKey{session: sessionID, recipeID: recipeID}

	r.mu.Lock()
	entry, ok := r.views[key]
	delete(r.views, key)
	n := len(r.views)
	r.mu.Unlock()

	if ok {
		entry.view.Close()
		r.observe(n)
	}
}

// UnmountSession closes every view of a session
func (r *ViewRegistry) UnmountSession(sessionID string) int {
	var closing []*recipeview.View

	r.mu.Lock()
	for key, entry := range r.views {
		if key.session == sessionID {
			closing = append(closing, entry.view)
			delete(r.views, key)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	for _, v := range closing {
		v.Close()
	}
	if len(closing) > 0 {
		r.observe(n)
	}
	return len(closing)
}

// Sweep closes views idle for longer than the idle TTL
func (r *ViewRegistry) Sweep() int {
	var closing []*recipeview.View
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	for key, entry := range r.views {
		if entry.lastUsed.Before(cutoff) {
			closing = append(closing, entry.view)
			delete(r.views, key)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	for _, v := range closing {
		v.Close()
	}
	if len(closing) > 0 {
		r.logger.Debug("Closed idle views", zap.Int("count", len(closing)))
		r.observe(n)
	}
	return len(closing)
}

// Len returns the number of mounted views
func (r *ViewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close closes every mounted view
func (r *ViewRegistry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[viewKey]*viewEntry)
	r.mu.Unlock()

	for _, entry := range views {
		entry.view.Close()
	}
	r.observe(0)
	r.logger.Info("Closed mounted views", zap.Int("count", len(views)))
}

func (r *ViewRegistry) observe(n int) {
	if r.observer != nil {
		r.observer.SetMountedViews(n)
	}
}
