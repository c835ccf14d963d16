// v2
// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

var _ ReadingStore = (*MemoryStore)(nil)

// MemoryStore keeps readings in one slice sorted by observation time. It is
// safe for concurrent use: writers take the exclusive lock for the insert,
// readers share the lock for the whole scan, so a scan always sees a
// consistent snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []core.Reading // sorted by ObservedAt asc, stable for equal times
	clock    func() time.Time
	skew     time.Duration
}

// NewMemoryStore builds an empty store. clock may be nil, in which case
// time.Now is used; tests inject a fixed clock to control validation.
func NewMemoryStore(clock func() time.Time, skew time.Duration) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{clock: clock, skew: skew}
}

// Record validates and inserts the reading at its sorted position. Readings
// arriving out of order are placed correctly rather than appended blindly.
func (m *MemoryStore) Record(ctx context.Context, r core.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateReading(r, m.clock(), m.skew); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// First index strictly after r.ObservedAt keeps equal timestamps in
	// arrival order.
	i := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].ObservedAt.After(r.ObservedAt)
	})
	m.readings = append(m.readings, core.Reading{})
	copy(m.readings[i+1:], m.readings[i:])
	m.readings[i] = r
	return nil
}

// Scan walks the window slice of the sorted buffer under the read lock.
func (m *MemoryStore) Scan(ctx context.Context, deviceIDs []string, w core.Window, fn func(core.Reading) error) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	scope := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		scope[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	readings := m.readings
	lo := sort.Search(len(readings), func(i int) bool { return !readings[i].ObservedAt.Before(w.Start) })
	hi := sort.Search(len(readings), func(i int) bool { return !readings[i].ObservedAt.Before(w.End) })

	for _, r := range readings[lo:hi] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := scope[r.DeviceID]; !ok {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of stored readings.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings)
}
