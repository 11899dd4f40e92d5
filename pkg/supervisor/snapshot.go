package supervisor

import (
	"sync"

	"github.com/core-tools/hsu-init/pkg/units"
)

// SnapshotStore keeps the latest published unit state for readers on other
// goroutines, such as the control server.
type SnapshotStore struct {
	mu       sync.RWMutex
	snapshot []units.Status
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) UnitsChanged(snapshot []units.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// Units returns a copy of the latest snapshot.
func (s *SnapshotStore) Units() []units.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]units.Status, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}
