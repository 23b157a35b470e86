package vmm

import (
	"hvpt/kernel"
	"hvpt/kernel/mem/pmm"
)

// Memory is the "map a physical frame into the hypervisor's own address
// space for inspection" collaborator. It plays the same role a real MMU
// temporary-mapping facility would; here the mapping is a software window
// onto a table frame's raw entries.
//
// A call to Map invalidates any Window previously returned by the same
// Memory value, mirroring a single-slot per-CPU mapping-window cache.
type Memory interface {
	Map(pfn pmm.Frame) (*Window, error)
}

// ErrStaleWindow is returned by Window.Read/Write once a later Map call on
// the same Memory has invalidated the window.
var ErrStaleWindow = kernel.New("vmm", kernel.ErrInternal, "mapping window invalidated by a later Map call")

// Window is a handle onto one physical frame's raw page-table entries. It
// becomes stale as soon as Map is called again on the Memory it came from;
// using a stale Window returns ErrStaleWindow instead of silently reading
// or writing through a dangling mapping.
type Window struct {
	entries []Entry
	epoch   *uint64
	gen     uint64
}

func (w *Window) valid() bool { return w.gen == *w.epoch }

// Read returns the entry at index, or ErrStaleWindow if the window has
// been invalidated.
func (w *Window) Read(index int) (Entry, error) {
	if !w.valid() {
		return 0, ErrStaleWindow
	}
	return w.entries[index], nil
}

// Write stores e at index, or returns ErrStaleWindow if the window has
// been invalidated.
func (w *Window) Write(index int, e Entry) error {
	if !w.valid() {
		return ErrStaleWindow
	}
	w.entries[index] = e
	return nil
}

// Len returns the number of entries addressable through this window.
func (w *Window) Len() int { return len(w.entries) }
