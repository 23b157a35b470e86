// Package pmm contains the physical-frame-number type shared by the frame
// table and the virtual-memory walks that index into it.
package pmm

import (
	"math"

	"hvpt/kernel/mem"
)

// Frame describes a physical memory page index. It does not encode a
// page order in its high bits: this engine has no large-page support, so
// Frame is a plain linear index into the frame table.
type Frame uint64

// InvalidFrame is returned by the frame allocator on failure and terminates
// the frame table's free list.
const InvalidFrame = Frame(math.MaxUint64)

// IsValid reports whether f is a real frame rather than InvalidFrame.
func (f Frame) IsValid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}
