package queue

import "github.com/openann19/petphotos/core"

// Photos returns a consistent, ordered snapshot of every slot.
func (m *Manager) Photos() []core.PhotoSlot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.PhotoSlot, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.snapshot()
	}
	return out
}

// Photo returns a snapshot of the slot with the given id.
func (m *Manager) Photo(id string) (core.PhotoSlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		return m.entries[i].snapshot(), true
	}
	return core.PhotoSlot{}, false
}

// PrimaryPhoto returns the primary slot; ok is false for an empty queue.
func (m *Manager) PrimaryPhoto() (core.PhotoSlot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if s := e.snapshot(); s.IsPrimary {
			return s, true
		}
	}
	return core.PhotoSlot{}, false
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Manager) MaxPhotos() int { return m.cfg.MaxPhotos }

// CanAddMorePhotos reports whether the queue is below capacity.
func (m *Manager) CanAddMorePhotos() bool {
	return m.Count() < m.cfg.MaxPhotos
}

// MemoryOptimized reports whether a memory warning has been handled.
func (m *Manager) MemoryOptimized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memoryOptimized
}
