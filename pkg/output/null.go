package output

import "sync"

// Null discards audio. Blocks are produced only when Pull is called, which
// makes it the deterministic backend for tests and headless hosts.
type Null struct {
	// Threaded selects the dedicated render goroutine model.
	Threaded bool

	mu      sync.Mutex
	spec    Spec
	prepare Callback
	started bool
}

// NewNull returns a pull-driven null backend.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) Open(spec Spec, _ string, prepare Callback) (Spec, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.prepare != nil {
		return Spec{}, ErrAlreadyOpen
	}
	n.spec = spec
	n.prepare = prepare
	return spec, nil
}

func (n *Null) NeedsAudioThread() bool {
	return n.Threaded
}

func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.prepare == nil {
		return ErrNotOpen
	}
	n.started = true
	return nil
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = false
	n.prepare = nil
	return nil
}

// Pull asks for one block into dst. It reports false when not started.
func (n *Null) Pull(dst []float32) bool {
	n.mu.Lock()
	prepare, started := n.prepare, n.started
	n.mu.Unlock()
	if !started {
		return false
	}
	prepare(dst)
	return true
}

// Spec returns the spec accepted by Open.
func (n *Null) Spec() Spec {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.spec
}
