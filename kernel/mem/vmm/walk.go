package vmm

import (
	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
	"hvpt/kernel/mem/pmm/frametable"
)

// getL1 acquires a reference to pfn as an L1 (page) table on behalf of
// owner. If this is the first reference, every present entry in the table
// is walked and a page reference is acquired for its target frame.
func (e *Engine) getL1(owner domain.Owner, pfn pmm.Frame) error {
	prior, err := e.Frames.Acquire(owner, pfn, frametable.TypeL1Table)
	if err != nil {
		return err
	}
	e.logf("getL1: acquired frame %d for %s, prior count %d", pfn, owner, prior)
	if prior > 0 {
		return nil
	}
	e.logf("getL1: first reference to frame %d, walking entries", pfn)

	for i := 0; i < EntriesPerTable; i++ {
		// Re-map on every iteration: a nested getPage call never touches
		// Mem, but remapping defensively here means the loop keeps working
		// even if a future collaborator's getPage starts mapping memory of
		// its own.
		win, err := e.Mem.Map(pfn)
		if err != nil {
			return err
		}
		ent, err := win.Read(i)
		if err != nil {
			return err
		}
		if !ent.HasFlag(FlagPresent) {
			continue
		}
		if ent.forbiddenL1() {
			return e.errf(kernel.ErrForbiddenBits, "L1 entry %d of frame %d sets a forbidden bit", i, pfn)
		}
		if err := e.getPage(owner, ent.Frame(), ent.HasFlag(FlagRW)); err != nil {
			return err
		}
	}
	e.logf("getL1: walk of frame %d complete", pfn)
	return nil
}

// getL2 acquires a reference to pfn as an L2 (directory) table. On first
// reference it walks the guest-reserved portion of the directory and
// splices in the hypervisor's fixed high-half mappings.
func (e *Engine) getL2(owner domain.Owner, pfn pmm.Frame) error {
	prior, err := e.Frames.Acquire(owner, pfn, frametable.TypeL2Table)
	if err != nil {
		return err
	}
	e.logf("getL2: acquired frame %d for %s, prior count %d", pfn, owner, prior)
	if prior > 0 {
		return nil
	}
	e.logf("getL2: first reference to frame %d, walking guest entries", pfn)

	for i := 0; i < e.domainEntriesPerL2; i++ {
		win, err := e.Mem.Map(pfn)
		if err != nil {
			return err
		}
		ent, err := win.Read(i)
		if err != nil {
			return err
		}
		if !ent.HasFlag(FlagPresent) {
			continue
		}
		if ent.forbiddenL2() {
			return e.errf(kernel.ErrForbiddenBits, "L2 entry %d of frame %d sets a forbidden bit", i, pfn)
		}
		if err := e.getL1(owner, ent.Frame()); err != nil {
			return err
		}
	}

	e.logf("getL2: walk of frame %d complete", pfn)
	return e.installHypervisorMappings(pfn, owner)
}

// installHypervisorMappings splices the fixed high-half template entries
// and, if configured, the domain's private per-domain mapping entry into
// a newly committed L2 table.
func (e *Engine) installHypervisorMappings(pfn pmm.Frame, owner domain.Owner) error {
	if e.Template != nil {
		win, err := e.Mem.Map(pfn)
		if err != nil {
			return err
		}
		for i := e.domainEntriesPerL2; i < EntriesPerTable && i < len(e.Template); i++ {
			if err := win.Write(i, e.Template[i]); err != nil {
				return err
			}
		}
	}

	if e.PerDomainTable == nil || e.PerDomainSlot < e.domainEntriesPerL2 || e.PerDomainSlot >= EntriesPerTable {
		return nil
	}
	id, ok := owner.Domain()
	if !ok {
		return nil
	}
	win, err := e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	entry := Entry(0).WithFrame(e.PerDomainTable(id)).SetFlag(FlagPresent).SetFlag(FlagRW)
	return win.Write(e.PerDomainSlot, entry)
}

// putL1 releases a reference to pfn as an L1 table. If the reference
// count reaches zero, every present entry is walked and released.
func (e *Engine) putL1(owner domain.Owner, pfn pmm.Frame) error {
	newCount, err := e.Frames.Release(owner, pfn, frametable.TypeL1Table)
	if err != nil {
		return err
	}
	e.logf("putL1: released frame %d for %s, new count %d", pfn, owner, newCount)
	if newCount != 0 {
		return nil
	}
	e.logf("putL1: last reference to frame %d released, walking entries", pfn)

	for i := 0; i < EntriesPerTable; i++ {
		win, err := e.Mem.Map(pfn)
		if err != nil {
			return err
		}
		ent, err := win.Read(i)
		if err != nil {
			return err
		}
		if !ent.HasFlag(FlagPresent) {
			continue
		}
		if err := e.putPage(owner, ent.Frame(), ent.HasFlag(FlagRW)); err != nil {
			return err
		}
	}
	e.logf("putL1: walk of frame %d complete", pfn)
	return nil
}

// putL2 releases a reference to pfn as an L2 table, recursing into putL1
// for every present guest entry once the last reference is gone.
func (e *Engine) putL2(owner domain.Owner, pfn pmm.Frame) error {
	newCount, err := e.Frames.Release(owner, pfn, frametable.TypeL2Table)
	if err != nil {
		return err
	}
	e.logf("putL2: released frame %d for %s, new count %d", pfn, owner, newCount)
	if newCount != 0 {
		return nil
	}
	e.logf("putL2: last reference to frame %d released, walking guest entries", pfn)

	for i := 0; i < e.domainEntriesPerL2; i++ {
		win, err := e.Mem.Map(pfn)
		if err != nil {
			return err
		}
		ent, err := win.Read(i)
		if err != nil {
			return err
		}
		if !ent.HasFlag(FlagPresent) {
			continue
		}
		if err := e.putL1(owner, ent.Frame()); err != nil {
			return err
		}
	}
	e.logf("putL2: walk of frame %d complete", pfn)
	return nil
}

// getPage acquires a page reference to pfn: writeable mappings bump
// the frame's type count (committing the frame's type to writeable); read-only
// mappings bump only the total reference count, leaving the frame's type
// undisturbed so a page table can simultaneously be referenced by
// present-but-read-only PTEs.
func (e *Engine) getPage(owner domain.Owner, pfn pmm.Frame, writeable bool) error {
	if writeable {
		prior, err := e.Frames.Acquire(owner, pfn, frametable.TypeWriteable)
		if err != nil {
			return err
		}
		e.logf("getPage: acquired writeable frame %d for %s, prior count %d", pfn, owner, prior)
		return nil
	}
	if err := e.Frames.Touch(owner, pfn); err != nil {
		return err
	}
	e.logf("getPage: touched frame %d for %s", pfn, owner)
	return nil
}

// putPage is the inverse of getPage. Dropping the last writeable
// reference schedules a local TLB flush.
func (e *Engine) putPage(owner domain.Owner, pfn pmm.Frame, writeable bool) error {
	if writeable {
		newCount, err := e.Frames.Release(owner, pfn, frametable.TypeWriteable)
		if err != nil {
			return err
		}
		e.logf("putPage: released writeable frame %d for %s, new count %d", pfn, owner, newCount)
		if newCount == 0 {
			e.scheduleFlush()
		}
		return nil
	}
	if err := e.Frames.Untouch(owner, pfn); err != nil {
		return err
	}
	e.logf("putPage: untouched frame %d for %s", pfn, owner)
	return nil
}
