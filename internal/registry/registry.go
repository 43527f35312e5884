package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/logger"
)

// Registry holds the most recently loaded snapshot and reloads it from its
// source once it is older than the refresh interval. A failed reload keeps
// serving the previous snapshot.
type Registry struct {
	source  Source
	refresh time.Duration
	log     logger.Logger
	now     func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

func New(source Source, refresh time.Duration, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{source: source, refresh: refresh, log: log, now: time.Now}
}

// Snapshot returns the current registry, loading it on first use.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()

	if snap != nil && (r.refresh <= 0 || r.now().Sub(snap.LoadedAt) < r.refresh) {
		return snap, nil
	}

	fresh, err := r.Reload(ctx)
	if err != nil {
		if snap != nil {
			r.log.Warn("Supplier registry reload failed, serving previous snapshot", map[string]interface{}{
				"version": snap.Version,
				"error":   err.Error(),
			})
			return snap, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Reload loads the registry from its source unconditionally.
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) {
	snap, err := r.source.Load(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	previous := r.snapshot
	r.snapshot = snap
	r.mu.Unlock()

	fields := map[string]interface{}{
		"source":  snap.Source,
		"records": snap.Len(),
		"version": snap.Version,
	}
	if previous != nil && previous.Version != snap.Version {
		fields["previousVersion"] = previous.Version
	}
	r.log.Info("Supplier registry loaded", fields)
	return snap, nil
}

// Status describes the stored supplier list.
type Status struct {
	Exists       bool      `json:"exists"`
	IsValid      bool      `json:"is_valid"`
	RecordCount  int       `json:"supplier_count"`
	LastModified time.Time `json:"last_modified,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// ObjectStore is what CheckStatus needs from storage.
type ObjectStore interface {
	ObjectReader
	Head(ctx context.Context, key string) (*aws.ObjectInfo, error)
}

// CheckStatus reports whether the supplier list at key exists and parses
// into at least one supplier.
func CheckStatus(ctx context.Context, store ObjectStore, key string) Status {
	info, err := store.Head(ctx, key)
	if err != nil {
		if errors.Is(err, aws.ErrObjectNotFound) {
			return Status{Error: "supplier list not found"}
		}
		return Status{Error: err.Error()}
	}

	status := Status{Exists: true, LastModified: info.LastModified}
	snap, err := NewS3Source(store, key).Load(ctx)
	switch {
	case errors.Is(err, ErrPlaceholder):
		status.Error = "supplier list is a placeholder, upload the real list"
	case errors.Is(err, ErrEmpty):
		status.Error = "supplier list contains no suppliers"
	case err != nil:
		status.Error = err.Error()
	default:
		status.IsValid = true
		status.RecordCount = snap.Len()
	}
	return status
}
