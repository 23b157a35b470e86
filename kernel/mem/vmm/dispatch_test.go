package vmm

import (
	"testing"

	"hvpt/kernel/domain"
)

func TestOutOfRangeRequestKillsDomain(t *testing.T) {
	h := newHarness(2, 16)
	const dom = domain.ID(1)

	req := UpdateRequest{Ptr: uintptr(100) << 12, Val: 0}
	if err := h.engine.ProcessPageUpdates(dom, []UpdateRequest{req}); err == nil {
		t.Fatal("expected an out-of-range request to fail")
	}
	if !h.killer.killed {
		t.Fatal("expected the domain to be killed")
	}
}

func TestUnknownExtendedCommand(t *testing.T) {
	h := newHarness(2, 16)
	const dom = domain.ID(1)
	a := h.allocFor(dom)

	req := UpdateRequest{Ptr: ptrFor(a, 0, RequestExtended), Val: 0xFF}
	if err := h.engine.ProcessPageUpdates(dom, []UpdateRequest{req}); err == nil {
		t.Fatal("expected an unrecognised extended command to fail")
	}
}

func TestInvlpgInvalidatesRequestedAddress(t *testing.T) {
	h := newHarness(2, 16)
	const dom = domain.ID(1)
	a := h.allocFor(dom)

	const va = uintptr(0xCAFE00)
	req := UpdateRequest{Ptr: ptrFor(a, 0, RequestExtended), Val: uint32(va) | uint32(ExtInvlpg)}
	if err := h.engine.ProcessPageUpdates(dom, []UpdateRequest{req}); err != nil {
		t.Fatalf("invlpg: %v", err)
	}
	if len(h.tlb.invlpgVAs) != 1 || h.tlb.invlpgVAs[0] != va {
		t.Fatalf("expected invlpg to be invoked with %#x; got %v", va, h.tlb.invlpgVAs)
	}
}

func TestTLBFlushCommand(t *testing.T) {
	h := newHarness(2, 16)
	const dom = domain.ID(1)
	a := h.allocFor(dom)

	req := UpdateRequest{Ptr: ptrFor(a, 0, RequestExtended), Val: uint32(ExtTLBFlush)}
	if err := h.engine.ProcessPageUpdates(dom, []UpdateRequest{req}); err != nil {
		t.Fatalf("tlb flush: %v", err)
	}
	if h.tlb.flushes != 1 {
		t.Fatalf("expected exactly one flush; got %d", h.tlb.flushes)
	}
}
