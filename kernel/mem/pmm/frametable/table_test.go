package frametable

import (
	"testing"

	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
)

func TestNewLinksFreeListAscending(t *testing.T) {
	tbl := New(10, 4)

	if got := tbl.FreeCount(); got != 6 {
		t.Fatalf("expected 6 free frames; got %d", got)
	}

	for i := uint64(0); i < 4; i++ {
		rec, err := tbl.Snapshot(pmm.Frame(i))
		if err != nil {
			t.Fatalf("snapshot(%d): %v", i, err)
		}
		if rec.Owner != domain.OwnerHypervisor {
			t.Errorf("frame %d: expected hypervisor owner; got %s", i, rec.Owner)
		}
	}

	for pfn := pmm.Frame(4); pfn.IsValid() && uint64(pfn) < 10; {
		f, err := tbl.Alloc(domain.Of(domain.Privileged))
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}
		if f != pfn {
			t.Fatalf("expected frames to be allocated in ascending order: got %d, want %d", f, pfn)
		}
		pfn++
	}
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	tbl := New(4, 0)
	owner := domain.Of(domain.Privileged)
	pfn, err := tbl.Alloc(owner)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}

	prior, err := tbl.Acquire(owner, pfn, TypeL1Table)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if prior != 0 {
		t.Fatalf("expected first acquire to report prior count 0; got %d", prior)
	}

	rec, _ := tbl.Snapshot(pfn)
	if rec.Type != TypeL1Table || rec.TypeCount() != 1 || rec.TotCount() != 1 {
		t.Fatalf("unexpected record after acquire: %+v", rec)
	}

	newCount, err := tbl.Release(owner, pfn, TypeL1Table)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if newCount != 0 {
		t.Fatalf("expected release to bring type count to 0; got %d", newCount)
	}

	rec, _ = tbl.Snapshot(pfn)
	if rec.Type != TypeNone || rec.TotCount() != 0 {
		t.Fatalf("expected frame demoted to none after last release; got %+v", rec)
	}
}

func TestAcquireTypeConflict(t *testing.T) {
	tbl := New(4, 0)
	owner := domain.Of(domain.Privileged)
	pfn, _ := tbl.Alloc(owner)

	if _, err := tbl.Acquire(owner, pfn, TypeWriteable); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err := tbl.Acquire(owner, pfn, TypeL1Table)
	if err == nil {
		t.Fatal("expected a type conflict error")
	}
	if kerr, ok := err.(*kernel.Error); !ok || kerr.Kind != kernel.ErrTypeConflict {
		t.Fatalf("expected ErrTypeConflict; got %v", err)
	}
}

func TestAcquireWrongDomain(t *testing.T) {
	tbl := New(4, 0)
	a := domain.Of(domain.Privileged)
	b := domain.Of(domain.ID(1))
	pfn, _ := tbl.Alloc(a)

	_, err := tbl.Acquire(b, pfn, TypeWriteable)
	if kerr, ok := err.(*kernel.Error); !ok || kerr.Kind != kernel.ErrWrongDomain {
		t.Fatalf("expected ErrWrongDomain; got %v", err)
	}
}

func TestPinUnpinRoundTrip(t *testing.T) {
	tbl := New(4, 0)
	owner := domain.Of(domain.Privileged)
	pfn, _ := tbl.Alloc(owner)
	if _, err := tbl.Acquire(owner, pfn, TypeL1Table); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	before, _ := tbl.Snapshot(pfn)

	if err := tbl.Pin(owner, pfn); err != nil {
		t.Fatalf("pin: %v", err)
	}
	pinned, _ := tbl.Snapshot(pfn)
	if !pinned.Pinned() {
		t.Fatal("expected frame to be pinned")
	}
	if pinned.TypeCount() != before.TypeCount() {
		t.Fatalf("expected pin to leave numeric counts unchanged: before %d, after %d", before.TypeCount(), pinned.TypeCount())
	}

	if err := tbl.Pin(owner, pfn); err == nil {
		t.Fatal("expected pinning an already-pinned frame to fail")
	} else if kerr, ok := err.(*kernel.Error); !ok || kerr.Kind != kernel.ErrAlreadyPinned {
		t.Fatalf("expected ErrAlreadyPinned; got %v", err)
	}
	// Re-pinning must fail without perturbing the record.
	afterFailedPin, _ := tbl.Snapshot(pfn)
	if afterFailedPin != pinned {
		t.Fatalf("failed pin mutated frame state: before %+v, after %+v", pinned, afterFailedPin)
	}

	if err := tbl.Unpin(owner, pfn); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	after, _ := tbl.Snapshot(pfn)
	if after != before {
		t.Fatalf("expected unpin to restore pre-pin state: before %+v, after %+v", before, after)
	}
}

func TestFreeRefusesOutstandingReferences(t *testing.T) {
	tbl := New(2, 0)
	owner := domain.Of(domain.Privileged)
	pfn, _ := tbl.Alloc(owner)
	if _, err := tbl.Acquire(owner, pfn, TypeWriteable); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := tbl.Free(pfn); err == nil {
		t.Fatal("expected Free to refuse a frame with outstanding references")
	}

	if _, err := tbl.Release(owner, pfn, TypeWriteable); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := tbl.Free(pfn); err != nil {
		t.Fatalf("expected Free to succeed once references are gone: %v", err)
	}
}
