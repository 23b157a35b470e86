// Package domain defines the identity types shared by the frame table and
// the update engine. It exists on its own, separate from both, purely to
// avoid a package cycle: kernel/mem/pmm/frametable needs to check frame
// ownership and kernel/mem/vmm needs to identify the domain running a
// batch, and neither should have to import the other for it.
package domain

import "fmt"

// ID identifies a guest domain. Domain 0 is the privileged control domain
// that may issue unchecked page-table updates and bootstrap device
// mappings.
type ID uint16

// Privileged is the identifier of the control domain.
const Privileged ID = 0

// Owner identifies who owns a physical frame: a specific domain, the
// hypervisor itself, or nobody (the frame sits on the free list). It is a
// tagged wrapper around ID rather than a raw integer, preferring a tagged
// discriminator over ad-hoc sentinel values.
type Owner uint32

const (
	// OwnerHypervisor marks a frame reserved for the hypervisor image or
	// its bookkeeping structures (the frame table itself, for instance).
	OwnerHypervisor Owner = 1<<32 - 2

	// OwnerFree marks a frame that is on the free list and owned by no
	// domain.
	OwnerFree Owner = 1<<32 - 1
)

// Of returns the Owner value representing domain id.
func Of(id ID) Owner { return Owner(id) }

// IsDomain reports whether o names an actual domain, as opposed to one of
// the reserved sentinels.
func (o Owner) IsDomain() bool { return o < OwnerHypervisor }

// Domain returns the domain ID o names and true, or (0, false) if o is a
// reserved sentinel rather than an actual domain.
func (o Owner) Domain() (ID, bool) {
	if !o.IsDomain() {
		return 0, false
	}
	return ID(o), true
}

// String implements fmt.Stringer.
func (o Owner) String() string {
	switch o {
	case OwnerFree:
		return "free"
	case OwnerHypervisor:
		return "hypervisor"
	default:
		return fmt.Sprintf("domain(%d)", ID(o))
	}
}
