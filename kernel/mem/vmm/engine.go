package vmm

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"hvpt/kernel"
	"hvpt/kernel/domain"
	"hvpt/kernel/mem/pmm"
	"hvpt/kernel/mem/pmm/frametable"
)

// Engine is the batched update-request dispatcher and the table
// acquire/release/entry-modification engine. An Engine is not a
// package-level singleton: every piece of state it needs is carried
// explicitly on the struct, so independent engines (one per test case,
// for example) can coexist without interfering with one another.
type Engine struct {
	Frames *frametable.Table
	Mem    Memory
	Killer Killer
	TLB    TLB
	Logger Logger

	// domainEntriesPerL2 is the number of low-order L2 slots available for
	// guest mappings. The remaining slots are hypervisor-reserved.
	domainEntriesPerL2 int

	// Template holds the fixed high-half entries spliced into every newly
	// committed L2 table. A nil Template skips the splice, which is
	// convenient for tests that don't care about the hypervisor's own
	// mappings.
	Template []Entry

	// PerDomainSlot/PerDomainTable install each domain's private mapping
	// entry into a freshly committed L2 table. A nil PerDomainTable skips
	// the installation.
	PerDomainSlot  int
	PerDomainTable func(domain.ID) pmm.Frame

	mu    sync.Mutex
	Roots map[domain.ID]pmm.Frame

	// flushPending is an atomic.Bool, not a plain bool guarded by mu,
	// because an explicit TLB_FLUSH extended command can set it from
	// within a batch already holding mu (via scheduleFlush), and a future
	// SMP-aware embedder may also want to raise it from outside a batch
	// entirely.
	flushPending atomic.Bool

	// Debug, when set, reports every accounting transition (acquire,
	// release, walk entry/exit) through Logger.
	Debug bool
}

// NewEngine constructs an Engine over an already-initialized frame table
// and memory collaborator. logger may be nil, in which case a StdLogger is
// used.
func NewEngine(frames *frametable.Table, mem Memory, domainEntriesPerL2 int, killer Killer, tlb TLB, logger Logger) *Engine {
	if logger == nil {
		logger = NewStdLogger()
	}
	return &Engine{
		Frames:             frames,
		Mem:                mem,
		Killer:             killer,
		TLB:                tlb,
		Logger:             logger,
		domainEntriesPerL2: domainEntriesPerL2,
		Roots:              make(map[domain.ID]pmm.Frame),
	}
}

// scheduleFlush records that a local TLB flush is owed before the current
// batch returns. It only ever promotes flushPending to "flush everything
// local to this CPU"; it does not yet distinguish how wide the flush
// needs to be. A multi-vCPU embedder would widen flushPending into a
// per-frame obligation that only ever escalates (FLUSH_NONE ->
// FLUSH_PAGETABLE, for a flush confined to CPUs sharing this page table,
// -> FLUSH_DOMAIN, for a flush across every CPU running the domain) and
// thread that obligation through here and through each of this
// function's three call sites: extended.go's explicit TLB_FLUSH handler,
// extended.go's newBaseptr (a root switch), and walk.go's putPage
// (dropping the last writeable reference to a page).
func (e *Engine) scheduleFlush() { e.flushPending.Store(true) }

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Debug {
		e.Logger.Printf(format, args...)
	}
}

func (e *Engine) errf(kind kernel.ErrorKind, format string, args ...interface{}) *kernel.Error {
	return kernel.New("vmm", kind, fmt.Sprintf(format, args...))
}
