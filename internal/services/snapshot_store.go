package services

import (
	"sync/atomic"

	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/models"
)

// snapshotStore holds the live snapshot behind an atomic pointer. Publish
// swaps the whole aggregate, so readers never observe a partial refresh.
type snapshotStore struct {
	current atomic.Pointer[models.Snapshot]
}

func NewSnapshotStore() interfaces.SnapshotStore {
	return &snapshotStore{}
}

// Load returns the live snapshot and false when no refresh has completed yet.
func (s *snapshotStore) Load() (*models.Snapshot, bool) {
	snapshot := s.current.Load()
	return snapshot, snapshot != nil
}

func (s *snapshotStore) Publish(snapshot *models.Snapshot) {
	if snapshot == nil {
		return
	}
	s.current.Store(snapshot)
}
