package vmm

import (
	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
	"hvpt/kernel/mem/pmm/frametable"
)

// ExtCommand is an extended command's sub-command tag, encoded in the low
// byte of an extended update request's val.
type ExtCommand uint8

const (
	ExtPinL1 ExtCommand = iota
	ExtPinL2
	ExtUnpin
	ExtNewBaseptr
	ExtTLBFlush
	ExtInvlpg
)

func (e *Engine) handleExtendedCommand(owner domain.Owner, id domain.ID, pfn pmm.Frame, cmd ExtCommand, arg uintptr) error {
	switch cmd {
	case ExtPinL1, ExtPinL2:
		return e.pin(owner, pfn, cmd)
	case ExtUnpin:
		return e.unpin(owner, pfn)
	case ExtNewBaseptr:
		return e.newBaseptr(owner, id, pfn)
	case ExtTLBFlush:
		e.scheduleFlush()
		return nil
	case ExtInvlpg:
		e.TLB.InvalidatePage(arg)
		return nil
	default:
		return e.errf(kernel.ErrUnknownCommand, "unrecognised extended command %d", cmd)
	}
}

// pin implements PIN_L1/PIN_L2. It checks the already-pinned condition
// before running the acquire walk, so a failing pin never leaves a
// spurious extra reference behind.
func (e *Engine) pin(owner domain.Owner, pfn pmm.Frame, cmd ExtCommand) error {
	rec, err := e.Frames.Snapshot(pfn)
	if err != nil {
		return err
	}
	if rec.Pinned() {
		return e.errf(kernel.ErrAlreadyPinned, "frame %d is already pinned", pfn)
	}

	if cmd == ExtPinL1 {
		if err := e.getL1(owner, pfn); err != nil {
			return err
		}
	} else {
		if err := e.getL2(owner, pfn); err != nil {
			return err
		}
	}

	return e.Frames.Pin(owner, pfn)
}

// unpin implements UNPIN: clear the pin flag, then release the reference
// the pin was holding via the appropriate putL1/putL2.
func (e *Engine) unpin(owner domain.Owner, pfn pmm.Frame) error {
	rec, err := e.Frames.Snapshot(pfn)
	if err != nil {
		return err
	}
	if err := e.Frames.Unpin(owner, pfn); err != nil {
		return err
	}

	switch rec.Type {
	case frametable.TypeL1Table:
		return e.putL1(owner, pfn)
	case frametable.TypeL2Table:
		return e.putL2(owner, pfn)
	default:
		return e.errf(kernel.ErrWrongType, "unpin on frame %d with unexpected type %s", pfn, rec.Type)
	}
}

// newBaseptr implements NEW_BASEPTR: acquire the new root, release the
// old one (if any), update the domain's saved root, and schedule a local
// TLB flush.
func (e *Engine) newBaseptr(owner domain.Owner, id domain.ID, pfn pmm.Frame) error {
	if err := e.getL2(owner, pfn); err != nil {
		return err
	}

	if oldRoot, ok := e.Roots[id]; ok {
		if err := e.putL2(owner, oldRoot); err != nil {
			return err
		}
	}

	e.Roots[id] = pfn
	e.scheduleFlush()
	return nil
}
