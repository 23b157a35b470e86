// Package frametable implements the dense, PFN-indexed per-frame metadata
// table that is the sole authority over frame ownership, type, and
// reference counts. It follows the shape of a bitmap frame allocator (one
// record per frame, a mutex-guarded slice, and a free list threaded
// through the records themselves), generalized from a binary "free or
// not" bitmap into the full owner/type/refcount record the update engine
// needs.
package frametable

import (
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
)

// Type is the mutually exclusive incarnation a physical frame currently
// holds.
type Type uint8

const (
	TypeNone Type = iota
	TypeL1Table
	TypeL2Table
	TypeWriteable
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeL1Table:
		return "L1-table"
	case TypeL2Table:
		return "L2-table"
	case TypeWriteable:
		return "writeable"
	default:
		return "unknown"
	}
}

// refcount packs a reference count together with a pin flag into a single
// uint32: bit 31 is the pin flag, bits 0-30 are the count.
type refcount uint32

const pinBit refcount = 1 << 31

func (c refcount) count() uint32  { return uint32(c &^ pinBit) }
func (c refcount) pinned() bool   { return c&pinBit != 0 }
func (c refcount) incr() refcount { return c + 1 }
func (c refcount) decr() refcount { return c - 1 }
func (c refcount) pin() refcount  { return c | pinBit }
func (c refcount) unpin() refcount {
	return c &^ pinBit
}

// Record is the per-frame metadata held by the frame table.
type Record struct {
	Owner domain.Owner
	Type  Type

	typeCount refcount
	totCount  refcount

	// next links this record into the free list when Owner == domain.OwnerFree.
	next pmm.Frame
}

// TypeCount returns the frame's current type-consistent reference count.
func (r Record) TypeCount() uint32 { return r.typeCount.count() }

// TotCount returns the frame's total reference count.
func (r Record) TotCount() uint32 { return r.totCount.count() }

// Pinned reports whether the frame is pinned.
func (r Record) Pinned() bool { return r.typeCount.pinned() }
