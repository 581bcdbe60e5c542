package group

import (
	"slices"
	"sync"
	"time"

	"github.com/saker-ai/mixcore/pkg/engine"
)

// Handle is the part of engine.Handle the registry needs.
type Handle interface {
	ID() engine.ID
	IsPlaying() bool
	Close()
}

type entry struct {
	owner   string
	handle  Handle
	created time.Time
}

// Manager tracks which owner started which sound so remote clients can
// address sounds by id and their sounds stop when they leave.
type Manager struct {
	mu      sync.Mutex
	handles map[engine.ID]*entry
	owners  map[string]map[engine.ID]struct{}
	now     func() time.Time
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{
		handles: make(map[engine.ID]*entry),
		owners:  make(map[string]map[engine.ID]struct{}),
		now:     time.Now,
	}
}

// Register records h as owned by owner. Registering the same id again
// moves it to the new owner.
func (m *Manager) Register(owner string, h Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := h.ID()
	if prev, ok := m.handles[id]; ok {
		m.dropOwnerLocked(prev.owner, id)
	}
	m.handles[id] = &entry{owner: owner, handle: h, created: m.now()}
	members, ok := m.owners[owner]
	if !ok {
		members = make(map[engine.ID]struct{})
		m.owners[owner] = members
	}
	members[id] = struct{}{}
}

// Lookup returns the handle for id and its owner.
func (m *Manager) Lookup(id engine.ID) (Handle, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.handles[id]
	if !ok {
		return nil, "", false
	}
	return e.handle, e.owner, true
}

// Release closes the handle for id and forgets it.
func (m *Manager) Release(id engine.ID) bool {
	m.mu.Lock()
	e, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		m.dropOwnerLocked(e.owner, id)
	}
	m.mu.Unlock()
	if ok {
		e.handle.Close()
	}
	return ok
}

// RemoveOwner closes every handle owner registered and returns their ids.
func (m *Manager) RemoveOwner(owner string) []engine.ID {
	m.mu.Lock()
	members := m.owners[owner]
	delete(m.owners, owner)
	closing := make([]Handle, 0, len(members))
	ids := make([]engine.ID, 0, len(members))
	for id := range members {
		if e, ok := m.handles[id]; ok {
			closing = append(closing, e.handle)
			delete(m.handles, id)
		}
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, h := range closing {
		h.Close()
	}
	slices.Sort(ids)
	return ids
}

// Members returns the ids owner holds, sorted.
func (m *Manager) Members(owner string) []engine.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]engine.ID, 0, len(m.owners[owner]))
	for id := range m.owners[owner] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Prune forgets handles whose sound has finished and that were registered
// more than grace ago. A new sound reports not playing until its first
// block, so grace must cover at least one block.
func (m *Manager) Prune(grace time.Duration) []engine.ID {
	cutoff := m.now().Add(-grace)
	m.mu.Lock()
	var (
		ids     []engine.ID
		closing []Handle
	)
	for id, e := range m.handles {
		if e.created.After(cutoff) || e.handle.IsPlaying() {
			continue
		}
		delete(m.handles, id)
		m.dropOwnerLocked(e.owner, id)
		ids = append(ids, id)
		closing = append(closing, e.handle)
	}
	m.mu.Unlock()

	for _, h := range closing {
		h.Close()
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of tracked handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *Manager) dropOwnerLocked(owner string, id engine.ID) {
	members, ok := m.owners[owner]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(m.owners, owner)
	}
}
