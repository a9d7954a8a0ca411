package foreman

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/bark"
)

// AnyGlobal is the untyped view of a global type token.
type AnyGlobal interface {
	global() *globalMeta
}

// globalMeta is the registry record of a singleton global value.
type globalMeta struct {
	id       int
	name     string
	sendable bool

	mu    sync.RWMutex
	value any

	visitValue func(visit func(Referrer))
}

func (g *globalMeta) tryRead() func() {
	if !g.mu.TryRLock() {
		panic(bark.AddTrace(StorageLockError{Archetype: "global", Component: g.name}))
	}
	return g.mu.RUnlock
}

func (g *globalMeta) tryWrite() func() {
	if !g.mu.TryLock() {
		panic(bark.AddTrace(StorageLockError{Archetype: "global", Component: g.name}))
	}
	return g.mu.Unlock
}

// Global is the type token for a singleton value outside any archetype,
// read or written by systems like a component with exactly one owner.
type Global[G any] struct {
	meta *globalMeta
}

func (t *Global[G]) global() *globalMeta { return t.meta }

// Name returns the global's debug name.
func (t *Global[G]) Name() string { return t.meta.name }

type globalOptions struct {
	unsendable bool
}

// GlobalOption configures a global at declaration.
type GlobalOption func(*globalOptions)

// UnsendableGlobal pins every reader and writer of the global to the main
// thread; only Unsendable systems may request it.
func UnsendableGlobal() GlobalOption {
	return func(o *globalOptions) { o.unsendable = true }
}

// FactoryNewGlobal declares a global with its initial value. Declaration
// must happen before the world is built.
func FactoryNewGlobal[G any](b *WorldBuilder, initial G, opts ...GlobalOption) *Global[G] {
	o := globalOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	meta := &globalMeta{
		name:     reflect.TypeFor[G]().String(),
		sendable: !o.unsendable,
		value:    &initial,
	}
	meta.visitValue = func(visit func(Referrer)) {
		if r, ok := meta.value.(Referrer); ok {
			visit(r)
		}
	}
	b.registerGlobal(meta)
	return &Global[G]{meta: meta}
}

// Read returns the global for reading during a cycle. The system must have
// declared a read request for it.
func (t *Global[G]) Read(ctx *SystemContext) *G {
	ctx.checkGlobal(t.meta, false)
	return t.meta.value.(*G)
}

// Write returns the global for writing during a cycle. The system must have
// declared a write request for it.
func (t *Global[G]) Write(ctx *SystemContext) *G {
	ctx.checkGlobal(t.meta, true)
	return t.meta.value.(*G)
}

// Get returns the global in offline mode, outside any cycle.
func (t *Global[G]) Get(w *World) *G {
	w.requireOffline("global access")
	return t.meta.value.(*G)
}
