// Package vmm implements the guest-submitted page-table update engine: the
// recursive acquire/release table walks, the transactional entry
// modifier, the extended command handler, and the batched request
// dispatcher. It follows the shape of a hosted page-table walker's
// flag-bit entry type and recursive table walk, generalized from "apply
// this mapping to the active page tables" to "validate and apply this
// guest-submitted entry change against the frame table".
package vmm

import (
	"hvpt/kernel/mem"
	"hvpt/kernel/mem/pmm"
)

// EntriesPerTable is the number of 32-bit entries in a single L1 or L2
// table: one page holds PageSize/4 four-byte entries in a 32-bit
// two-level paging scheme.
const EntriesPerTable = int(mem.PageSize / 4)

// Entry is a single page-directory (L2) or page-table (L1) entry: a
// 32-bit word whose low bits are flags and whose top 20 bits are a
// physical frame number.
type Entry uint32

// Flag is a single bit within an Entry.
type Flag uint32

// Entry flag bits.
const (
	FlagPresent Flag = 1 << 0
	FlagRW      Flag = 1 << 1
	FlagUser    Flag = 1 << 2
	FlagPAT     Flag = 1 << 6 // L1 only; forbidden in guest entries
	FlagPSE     Flag = 1 << 7 // L2 only; forbidden in guest entries
	FlagGlobal  Flag = 1 << 8 // forbidden in both levels
)

const pfnMask = 0xFFFFF000

// changedMaskL2/changedMaskL1 select which bits of an entry, if changed,
// require re-running the accounting walk.
const (
	changedMaskL2 Entry = 0xFFFFF001 // PFN + present
	changedMaskL1 Entry = 0xFFFFF003 // PFN + present + RW
)

// HasFlag reports whether f is set in e.
func (e Entry) HasFlag(f Flag) bool { return uint32(e)&uint32(f) != 0 }

// SetFlag returns e with f set.
func (e Entry) SetFlag(f Flag) Entry { return e | Entry(f) }

// ClearFlag returns e with f cleared.
func (e Entry) ClearFlag(f Flag) Entry { return e &^ Entry(f) }

// Frame returns the physical frame this entry points to.
func (e Entry) Frame() pmm.Frame {
	return pmm.Frame(uint32(e) & pfnMask >> mem.PageShift)
}

// WithFrame returns e with its PFN field replaced by f.
func (e Entry) WithFrame(f pmm.Frame) Entry {
	return Entry(uint32(e)&^pfnMask | uint32(f)<<mem.PageShift)
}

func (e Entry) forbiddenL1() bool { return e.HasFlag(FlagGlobal) || e.HasFlag(FlagPAT) }
func (e Entry) forbiddenL2() bool { return e.HasFlag(FlagGlobal) || e.HasFlag(FlagPSE) }
