package vmm

import (
	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem"
	"hvpt/kernel/mem/pmm"
)

func splitEntryAddr(pa uintptr) (pmm.Frame, int) {
	pfn := pmm.Frame(pa >> mem.PageShift)
	offset := int((pa & uintptr(mem.PageSize-1)) / 4)
	return pfn, offset
}

// modL2 transactionally applies a single L2 (page directory) entry
// change, where pa is the physical address of the entry within an
// already-committed L2 table.
func (e *Engine) modL2(owner domain.Owner, pa uintptr, newEntry Entry) error {
	pfn, offset := splitEntryAddr(pa)

	win, err := e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	old, err := win.Read(offset)
	if err != nil {
		return err
	}
	e.logf("modL2: frame %d offset %d: %#x -> %#x", pfn, offset, old, newEntry)

	if offset >= e.domainEntriesPerL2 {
		return e.errf(kernel.ErrHypervisorAreaViolation, "L2 update at offset %d of frame %d falls in the hypervisor-reserved region", offset, pfn)
	}

	// Speculatively write the new value before any nested acquire/release
	// call can invalidate this window: at the L2 level, nested getL1 may
	// recursively acquire many pages, so the slot must already reflect
	// the pending state if those acquires read this directory again.
	if err := win.Write(offset, newEntry); err != nil {
		return err
	}

	switch {
	case newEntry.HasFlag(FlagPresent):
		if newEntry.forbiddenL2() {
			return e.rollbackL2(pfn, offset, old, e.errf(kernel.ErrForbiddenBits, "new L2 entry at offset %d sets a forbidden bit", offset))
		}
		if (old^newEntry)&changedMaskL2 != 0 {
			if old.HasFlag(FlagPresent) {
				if err := e.putL1(owner, old.Frame()); err != nil {
					return e.rollbackL2(pfn, offset, old, err)
				}
			}
			if err := e.getL1(owner, newEntry.Frame()); err != nil {
				return e.rollbackL2(pfn, offset, old, err)
			}
		}
	case old.HasFlag(FlagPresent):
		if err := e.putL1(owner, old.Frame()); err != nil {
			return e.rollbackL2(pfn, offset, old, err)
		}
	}

	e.logf("modL2: frame %d offset %d committed", pfn, offset)
	return nil
}

// rollbackL2 restores old into pfn's slot at offset and returns origErr,
// remapping the window since it may have been invalidated by whatever
// nested call produced origErr.
func (e *Engine) rollbackL2(pfn pmm.Frame, offset int, old Entry, origErr error) error {
	win, err := e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	_ = win.Write(offset, old)
	return origErr
}

// modL1 transactionally applies a single L1 (page table) entry change
// over single-page mappings.
func (e *Engine) modL1(owner domain.Owner, pa uintptr, newEntry Entry) error {
	pfn, offset := splitEntryAddr(pa)

	win, err := e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	old, err := win.Read(offset)
	if err != nil {
		return err
	}
	e.logf("modL1: frame %d offset %d: %#x -> %#x", pfn, offset, old, newEntry)

	switch {
	case newEntry.HasFlag(FlagPresent):
		if newEntry.forbiddenL1() {
			return e.errf(kernel.ErrForbiddenBits, "new L1 entry at offset %d sets a forbidden bit", offset)
		}
		if (old^newEntry)&changedMaskL1 != 0 {
			if old.HasFlag(FlagPresent) {
				if err := e.putPage(owner, old.Frame(), old.HasFlag(FlagRW)); err != nil {
					return err
				}
			}
			if err := e.getPage(owner, newEntry.Frame(), newEntry.HasFlag(FlagRW)); err != nil {
				return err
			}
		}
	case old.HasFlag(FlagPresent):
		if err := e.putPage(owner, old.Frame(), old.HasFlag(FlagRW)); err != nil {
			return err
		}
	}

	// Unlike modL2, the new value is written back only after a
	// successful acquire: nested getPage/putPage calls never re-enter
	// this table through itself at the L1 level, so there is no
	// in-progress view that needs to be visible early, and writing only
	// on success means a failure leaves nothing written.
	win, err = e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	if err := win.Write(offset, newEntry); err != nil {
		return err
	}
	e.logf("modL1: frame %d offset %d committed", pfn, offset)
	return nil
}
