package frame

import "sync"

// Table is an append-only registry assigning a stable ID to every unique
// Frame. It is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	ids    map[Frame]ID
	frames []Frame
}

func NewTable() *Table {
	return &Table{
		ids: make(map[Frame]ID),
	}
}

// Intern returns the ID of f, allocating the next one on first sight.
func (t *Table) Intern(f Frame) ID {
	t.mu.RLock()
	id, ok := t.ids[f]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// another goroutine may have interned it while we were waiting
	if id, ok := t.ids[f]; ok {
		return id
	}
	id = ID(len(t.frames))
	t.ids[f] = id
	t.frames = append(t.frames, f)
	return id
}

// Lookup returns the ID of f without allocating one.
func (t *Table) Lookup(f Frame) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[f]
	return id, ok
}

// Frame returns the frame registered under id. It panics if id was never
// allocated by this table.
func (t *Table) Frame(id ID) Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames[id]
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.frames)
}

// Frames returns a copy of all frames, indexed by ID.
func (t *Table) Frames() []Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	frames := make([]Frame, len(t.frames))
	copy(frames, t.frames)
	return frames
}

// Absorb interns every frame of other, in other's ID order, and returns the
// mapping from other's IDs to IDs in t.
func (t *Table) Absorb(other *Table) []ID {
	frames := other.Frames()
	remap := make([]ID, len(frames))
	for i, f := range frames {
		remap[i] = t.Intern(f)
	}
	return remap
}
