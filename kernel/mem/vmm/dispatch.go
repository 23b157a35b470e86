package vmm

import (
	"github.com/pkg/errors"

	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem"
	"hvpt/kernel/mem/pmm"
	"hvpt/kernel/mem/pmm/frametable"
)

// ProcessPageUpdates consumes a batch of requests already copied from
// domain id's guest memory. It holds a single mutex for the whole batch:
// a global mutex over the whole call is required if the allocator may
// transfer ownership of frames concurrently with it.
func (e *Engine) ProcessPageUpdates(id domain.ID, reqs []UpdateRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	owner := domain.Of(id)

	for _, req := range reqs {
		pfn := pmm.Frame(req.addr() >> mem.PageShift)
		if uint64(pfn) >= uint64(e.Frames.MaxPage()) {
			return e.fatal(id, req, kernel.New("vmm", kernel.ErrOutOfRange, "page update request out of range"))
		}

		var err error
		switch req.kind() {
		case RequestNormal:
			err = e.dispatchNormal(owner, req)
		case RequestUnchecked:
			err = e.dispatchUnchecked(id, req)
		case RequestExtended:
			err = e.dispatchExtended(owner, id, req)
		default:
			err = kernel.New("vmm", kernel.ErrUnknownCommand, "invalid page update request kind")
		}

		if err != nil {
			return e.fatal(id, req, err)
		}
	}

	if e.flushPending.Load() {
		e.flushPending.Store(false)
		e.TLB.FlushLocal()
	}
	return nil
}

func (e *Engine) dispatchNormal(owner domain.Owner, req UpdateRequest) error {
	pfn := pmm.Frame(req.addr() >> mem.PageShift)
	rec, err := e.Frames.Snapshot(pfn)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return e.errf(kernel.ErrWrongDomain, "normal update targets frame %d owned by %s, not %s", pfn, rec.Owner, owner)
	}

	switch rec.Type {
	case frametable.TypeL1Table:
		return e.modL1(owner, req.addr(), Entry(req.Val))
	case frametable.TypeL2Table:
		return e.modL2(owner, req.addr(), Entry(req.Val))
	default:
		return e.errf(kernel.ErrWrongType, "normal update targets frame %d which is not a page-table frame", pfn)
	}
}

// dispatchUnchecked implements the privileged unchecked path: the caller
// must be the privileged domain, and the target frame must be an L1
// table owned by that same domain.
func (e *Engine) dispatchUnchecked(id domain.ID, req UpdateRequest) error {
	addr := req.addr()
	pfn := pmm.Frame(addr >> mem.PageShift)
	rec, err := e.Frames.Snapshot(pfn)
	if err != nil {
		return err
	}

	privilegedOwner := domain.Of(domain.Privileged)
	if id != domain.Privileged || rec.Type != frametable.TypeL1Table || rec.Owner != privilegedOwner {
		return e.errf(kernel.ErrPrivilegeRequired, "unchecked update on frame %d requires the privileged domain and an L1 table it owns", pfn)
	}

	win, err := e.Mem.Map(pfn)
	if err != nil {
		return err
	}
	_, offset := splitEntryAddr(addr)
	return win.Write(offset, Entry(req.Val))
}

func (e *Engine) dispatchExtended(owner domain.Owner, id domain.ID, req UpdateRequest) error {
	addr := req.addr()
	pfn := pmm.Frame(addr >> mem.PageShift)
	cmd := ExtCommand(req.Val & 0xFF)
	arg := uintptr(req.Val &^ 0xFF)
	return e.handleExtendedCommand(owner, id, pfn, cmd, arg)
}

// fatal logs the offending request, kills the domain, and returns the
// terminating error. Killer.KillDomain is expected not to return in
// production; this engine still returns so callers and tests observe
// exactly why the batch stopped.
func (e *Engine) fatal(id domain.ID, req UpdateRequest, cause error) error {
	wrapped := errors.Wrapf(cause, "illegal page update request (ptr=%#x val=%#x) from domain %d", req.Ptr, req.Val, id)
	e.Logger.Printf("%s", wrapped)
	e.Killer.KillDomain(wrapped.Error())
	return wrapped
}
