package services

import (
	"sync"
	"testing"
	"time"

	"zendesk-feedback-monitor/internal/models"
)

func TestSnapshotStoreEmpty(t *testing.T) {
	store := NewSnapshotStore()
	if snapshot, ok := store.Load(); ok || snapshot != nil {
		t.Errorf("Load() = %v, %v, want nil, false", snapshot, ok)
	}

	store.Publish(nil)
	if _, ok := store.Load(); ok {
		t.Error("publishing nil created a snapshot")
	}
}

func TestSnapshotStoreConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	store := NewSnapshotStore()

	var wg sync.WaitGroup
	for writer := 0; writer < 4; writer++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tickets := make([]models.Ticket, n+1)
				metrics := make(map[int64]models.TicketMetric, n+1)
				for j := range tickets {
					tickets[j] = models.Ticket{ID: int64(j)}
					metrics[int64(j)] = models.TicketMetric{"ticket_id": int64(j)}
				}
				store.Publish(&models.Snapshot{Feedback: tickets, TicketMetrics: metrics, LastUpdated: time.Now()})
			}
		}(writer)
	}

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snapshot, ok := store.Load()
				if !ok {
					continue
				}
				if len(snapshot.Feedback) != len(snapshot.TicketMetrics) {
					t.Errorf("torn snapshot: %d tickets, %d metrics", len(snapshot.Feedback), len(snapshot.TicketMetrics))
					return
				}
			}
		}()
	}

	wg.Wait()
}
