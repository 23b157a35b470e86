package frametable

import (
	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
)

// Acquire validates and records a new reference of type typ against pfn on
// behalf of owner. It returns the pre-increment type count: a return of 0
// signals the first reference of this incarnation, telling the caller it
// must perform the deep validation walk.
func (t *Table) Acquire(owner domain.Owner, pfn pmm.Frame, typ Type) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return 0, err
	}
	if rec.Owner != owner {
		return 0, kernel.Newf("frametable", kernel.ErrWrongDomain, "frame %d is owned by %s, not %s", pfn, rec.Owner, owner)
	}
	if rec.Type != typ {
		if rec.typeCount.count() != 0 {
			return 0, kernel.Newf("frametable", kernel.ErrTypeConflict, "frame %d already has type %s with %d references", pfn, rec.Type, rec.typeCount.count())
		}
		rec.Type = typ
	}

	prior := rec.typeCount.count()
	rec.totCount = rec.totCount.incr()
	rec.typeCount = rec.typeCount.incr()
	return prior, nil
}

// Release undoes one reference of type typ against pfn. Its preconditions
// are guaranteed by the caller already holding the reference being
// released; the checks below are defensive asserts, not expected failure
// paths for a well-behaved caller.
func (t *Table) Release(owner domain.Owner, pfn pmm.Frame, typ Type) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return 0, err
	}
	if rec.Owner != owner || rec.Type != typ {
		return 0, kernel.Newf("frametable", kernel.ErrWrongType, "release of frame %d as (%s, %s) does not match recorded (%s, %s)", pfn, owner, typ, rec.Owner, rec.Type)
	}
	kernel.Assert(rec.typeCount.count() > 0, kernel.Newf("frametable", kernel.ErrInternal, "release of frame %d with zero type count", pfn))

	rec.typeCount = rec.typeCount.decr()
	newCount := rec.typeCount.count()
	if newCount == 0 {
		rec.Type = TypeNone
	}
	rec.totCount = rec.totCount.decr()

	return newCount, nil
}

// Touch increments a frame's total reference count only, without
// affecting its type or type count. It backs read-only page mappings,
// which contribute to the total reference count but do not require the
// frame to hold any particular type.
func (t *Table) Touch(owner domain.Owner, pfn pmm.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return kernel.Newf("frametable", kernel.ErrWrongDomain, "frame %d is owned by %s, not %s", pfn, rec.Owner, owner)
	}
	rec.totCount = rec.totCount.incr()
	return nil
}

// Untouch is the inverse of Touch.
func (t *Table) Untouch(owner domain.Owner, pfn pmm.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return err
	}
	kernel.Assert(rec.totCount.count() > 0, kernel.Newf("frametable", kernel.ErrInternal, "untouch of frame %d with zero total count", pfn))
	rec.totCount = rec.totCount.decr()
	return nil
}

// Pin marks pfn as pinned. The caller must already hold a reference
// obtained via Acquire (through the getL1/getL2 walk) for the frame's
// current type; Pin does not itself add a reference, it only raises the
// pin flag, and fails without perturbing state if the frame is already
// pinned (see DESIGN.md for the rationale behind this ordering).
func (t *Table) Pin(owner domain.Owner, pfn pmm.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return kernel.Newf("frametable", kernel.ErrWrongDomain, "frame %d is owned by %s, not %s", pfn, rec.Owner, owner)
	}
	if rec.typeCount.pinned() {
		return kernel.Newf("frametable", kernel.ErrAlreadyPinned, "frame %d is already pinned", pfn)
	}

	rec.typeCount = rec.typeCount.pin()
	rec.totCount = rec.totCount.pin()
	return nil
}

// Unpin clears pfn's pin flag. It fails if the frame is not pinned.
func (t *Table) Unpin(owner domain.Owner, pfn pmm.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return kernel.Newf("frametable", kernel.ErrWrongDomain, "frame %d is owned by %s, not %s", pfn, rec.Owner, owner)
	}
	if !rec.typeCount.pinned() {
		return kernel.Newf("frametable", kernel.ErrNotPinned, "frame %d is not pinned", pfn)
	}

	rec.typeCount = rec.typeCount.unpin()
	rec.totCount = rec.totCount.unpin()
	return nil
}
