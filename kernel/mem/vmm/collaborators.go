package vmm

import (
	"log"
	"os"
)

// Logger is the console-logging collaborator. It mirrors the shape of a
// freestanding-kernel early-boot printf, adapted to the standard
// library's formatting verbs since this engine is hosted rather than
// freestanding.
type Logger interface {
	Printf(format string, args ...interface{})
}

// StdLogger adapts the standard library log package to Logger. It is the
// default collaborator; production embedders are expected to supply their
// own.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger returns a StdLogger writing to stderr.
func NewStdLogger() StdLogger {
	return StdLogger{log.New(os.Stderr, "vmm: ", log.LstdFlags)}
}

// Killer terminates a misbehaving domain. KillDomain does not return in
// a production hypervisor; this engine still returns a terminating error
// to ProcessPageUpdates's caller so tests can observe exactly why a batch
// stopped (see Engine.fatal).
type Killer interface {
	KillDomain(reason string)
}

// TLB exposes the TLB flush/invalidation collaborator.
type TLB interface {
	FlushLocal()
	InvalidatePage(virtAddr uintptr)
}
