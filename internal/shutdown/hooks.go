// Package shutdown tracks best-effort cleanup actions that must run when the
// process is terminating while a resource is still held.
//
// Resources register a hook when acquired and deregister it on clean release.
// The process owner calls Run from its signal handling path.
package shutdown

import (
	"log/slog"
	"sort"
	"sync"
)

// Hooks is a registry of exit hooks. The zero value is not usable; call New.
type Hooks struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	hooks  map[uint64]hook
}

type hook struct {
	name string
	fn   func()
}

// Handle identifies a registered hook.
type Handle struct {
	hooks *Hooks
	id    uint64
}

// New creates an empty registry.
func New(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		logger: logger,
		hooks:  make(map[uint64]hook),
	}
}

// Register adds fn to run on Run. fn must not block.
func (h *Hooks) Register(name string, fn func()) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.hooks[h.nextID] = hook{name: name, fn: fn}
	return &Handle{hooks: h, id: h.nextID}
}

// Deregister removes the hook. It reports whether the hook was still pending.
func (hd *Handle) Deregister() bool {
	if hd == nil || hd.hooks == nil {
		return false
	}

	h := hd.hooks
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.hooks[hd.id]; !ok {
		return false
	}
	delete(h.hooks, hd.id)
	return true
}

// Len returns the number of pending hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run executes and removes every pending hook, newest first.
// Each hook runs at most once; a panicking hook does not stop the others.
func (h *Hooks) Run() {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.hooks))
	for id := range h.hooks {
		ids = append(ids, id)
	}
	pending := h.hooks
	h.hooks = make(map[uint64]hook)
	h.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	for _, id := range ids {
		h.run(pending[id])
	}
}

func (h *Hooks) run(hk hook) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("exit hook panicked", "hook", hk.name, "panic", r)
		}
	}()

	h.logger.Info("running exit hook", "hook", hk.name)
	hk.fn()
}
