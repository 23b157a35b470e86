package vmm

import (
	"hvpt/kernel"
	"hvpt/kernel/mem/pmm"
)

// SimMemory is an in-memory Memory implementation: physical memory is
// modeled as a flat slice of frames, each holding EntriesPerTable entries.
// It is the reference implementation used by this package's tests; a
// production embedder plugs in the hypervisor's real domain-mapping
// window instead.
type SimMemory struct {
	frames [][EntriesPerTable]Entry
	epoch  uint64
}

// NewSimMemory allocates simulated physical memory for maxPage frames.
func NewSimMemory(maxPage pmm.Frame) *SimMemory {
	return &SimMemory{frames: make([][EntriesPerTable]Entry, maxPage)}
}

// Map implements Memory.
func (m *SimMemory) Map(pfn pmm.Frame) (*Window, error) {
	if uint64(pfn) >= uint64(len(m.frames)) {
		return nil, kernel.Newf("vmm", kernel.ErrOutOfRange, "frame %d out of range", pfn)
	}
	m.epoch++
	return &Window{entries: m.frames[pfn][:], epoch: &m.epoch, gen: m.epoch}, nil
}

// Entries returns a copy of the raw entries backing pfn, for test setup
// and assertions.
func (m *SimMemory) Entries(pfn pmm.Frame) [EntriesPerTable]Entry {
	return m.frames[pfn]
}

// SetEntry installs e at index within pfn's backing store, bypassing the
// Map/Window staleness machinery; intended for test fixtures that need to
// seed guest page-table contents before an engine call.
func (m *SimMemory) SetEntry(pfn pmm.Frame, index int, e Entry) {
	m.frames[pfn][index] = e
}
