// Package run supervises a single backend invocation and guarantees it is
// cancellable and cleanable regardless of how it ends.
//
// A Supervisor owns exactly one Unit: either a ProcessUnit wrapping a
// backend CLI subprocess, or an InlineUnit wrapping an in-process
// cancellable event source. Backends differ in isolation granularity; the
// supervisor does not, and nothing above the adapter composition layer may
// branch on which shape is in play.
//
// Cancellation is cooperative first, preemptive second: Cancel delivers the
// unit's abort notice, then arms two escalation timers. If the unit has not
// exited when the grace window elapses it is terminated; if it survives the
// kill window it is forcibly killed. Both timers are armed once per run and
// cleared by an idempotent cleanup that every exit path runs, so no timer
// can fire after the run is reaped.
package run
