package frametable

import (
	"sync"

	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
)

// Table is the dense, PFN-indexed frame table. It is carried explicitly by
// whoever constructs an engine rather than living as a package-level
// singleton: tests can stand up as many independent tables as they need.
type Table struct {
	mu sync.Mutex

	records []Record

	freeHead  pmm.Frame
	freeCount uint64
}

// New creates a frame table sized for nrPages physical frames. Frames in
// [0, reservedPages) are assumed to hold the hypervisor image and the
// frame table itself and are left owned by the hypervisor; frames in
// [reservedPages, nrPages) are linked into the free list in ascending
// order.
func New(nrPages, reservedPages uint64) *Table {
	t := &Table{
		records:  make([]Record, nrPages),
		freeHead: pmm.InvalidFrame,
	}

	for i := uint64(0); i < reservedPages && i < nrPages; i++ {
		t.records[i].Owner = domain.OwnerHypervisor
	}

	var tail pmm.Frame
	haveTail := false
	for pfn := reservedPages; pfn < nrPages; pfn++ {
		f := pmm.Frame(pfn)
		t.records[f].Owner = domain.OwnerFree
		t.records[f].next = pmm.InvalidFrame

		if !haveTail {
			t.freeHead = f
			haveTail = true
		} else {
			t.records[tail].next = f
		}
		tail = f
		t.freeCount++
	}

	return t
}

// MaxPage returns the number of frames this table covers.
func (t *Table) MaxPage() pmm.Frame {
	return pmm.Frame(len(t.records))
}

// FreeCount returns the number of frames currently on the free list.
func (t *Table) FreeCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freeCount
}

// Snapshot returns a copy of pfn's current record, for callers that need
// to branch on type/owner without holding a live reference to the table
// (the dispatcher's per-request type check, PIN's already-pinned
// pre-check).
func (t *Table) Snapshot(pfn pmm.Frame) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, err := t.recordLocked(pfn)
	if err != nil {
		return Record{}, err
	}
	return *rec, nil
}

func (t *Table) recordLocked(pfn pmm.Frame) (*Record, error) {
	if !pfn.IsValid() || uint64(pfn) >= uint64(len(t.records)) {
		return nil, kernel.Newf("frametable", kernel.ErrOutOfRange, "physical frame number %d out of range (max %d)", pfn, len(t.records))
	}
	return &t.records[pfn], nil
}

// Alloc removes a frame from the free list and assigns it to owner with a
// zeroed type and counts. It is the allocator collaborator's entry point:
// the allocator sets the owner and links or unlinks the frame from the
// free list as domains acquire and release memory.
func (t *Table) Alloc(owner domain.Owner) (pmm.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.freeHead == pmm.InvalidFrame {
		return pmm.InvalidFrame, kernel.New("frametable", kernel.ErrOutOfRange, "no free frames remain")
	}

	f := t.freeHead
	rec := &t.records[f]
	t.freeHead = rec.next
	t.freeCount--

	rec.Owner = owner
	rec.Type = TypeNone
	rec.typeCount = 0
	rec.totCount = 0
	rec.next = pmm.InvalidFrame

	return f, nil
}

// Free returns pfn to the free list. The caller must have already driven
// the total reference count to zero; Free refuses otherwise.
func (t *Table) Free(pfn pmm.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(pfn)
	if err != nil {
		return err
	}
	if rec.totCount.count() != 0 || rec.totCount.pinned() {
		return kernel.Newf("frametable", kernel.ErrInternal, "frame %d freed with outstanding references", pfn)
	}

	rec.Owner = domain.OwnerFree
	rec.Type = TypeNone
	rec.next = t.freeHead
	t.freeHead = pfn
	t.freeCount++

	return nil
}
