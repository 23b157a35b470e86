package vmm

import (
	"hvpt/kernel/domain"
	"hvpt/kernel/mem"
	"hvpt/kernel/mem/pmm"
	"hvpt/kernel/mem/pmm/frametable"
)

type fakeKiller struct {
	killed bool
	reason string
}

func (k *fakeKiller) KillDomain(reason string) {
	k.killed = true
	k.reason = reason
}

type fakeTLB struct {
	flushes   int
	invlpgVAs []uintptr
}

func (t *fakeTLB) FlushLocal() { t.flushes++ }
func (t *fakeTLB) InvalidatePage(va uintptr) {
	t.invlpgVAs = append(t.invlpgVAs, va)
}

// testHarness bundles a fresh Engine with its frame table, simulated
// memory, and fake collaborators, sized for nrPages frames with none
// reserved.
type testHarness struct {
	engine *Engine
	frames *frametable.Table
	mem    *SimMemory
	killer *fakeKiller
	tlb    *fakeTLB
}

func newHarness(nrPages uint64, domainEntriesPerL2 int) *testHarness {
	frames := frametable.New(nrPages, 0)
	mem := NewSimMemory(pmm.Frame(nrPages))
	killer := &fakeKiller{}
	tlb := &fakeTLB{}
	e := NewEngine(frames, mem, domainEntriesPerL2, killer, tlb, nil)
	return &testHarness{engine: e, frames: frames, mem: mem, killer: killer, tlb: tlb}
}

// allocFor allocates a frame owned by d.
func (h *testHarness) allocFor(d domain.ID) pmm.Frame {
	pfn, err := h.frames.Alloc(domain.Of(d))
	if err != nil {
		panic(err)
	}
	return pfn
}

func presentEntry(f pmm.Frame, rw bool) Entry {
	e := Entry(0).WithFrame(f).SetFlag(FlagPresent)
	if rw {
		e = e.SetFlag(FlagRW)
	}
	return e
}

func ptrFor(pfn pmm.Frame, offset int, kind RequestKind) uintptr {
	addr := uintptr(pfn)<<mem.PageShift + uintptr(offset*4)
	return addr | uintptr(kind)
}
