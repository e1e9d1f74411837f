// Package workflow is the only component that mutates jobs, tasks, task
// parameters, materials and batches.
//
// The Manager creates jobs from a profile job definition and a MODS seed
// record, optionally enriched through a catalog lookup, and drives the task
// state machine:
//
//	WAITING -> READY -> PROCESSING -> FINISHED
//	              ^          |
//	              +----------+
//
// with CANCELED reachable from every non-terminal state. Finishing or
// cancelling a task re-evaluates its successors; a waiting task becomes
// ready once all of its predecessors are terminal, and a job closes when
// every task is terminal.
//
// Every mutating operation runs in a single store transaction and checks the
// caller's version against the stored row, so concurrent writers see
// services.ErrConflict instead of silently overwriting each other. Listing
// operations decorate store views with profile labels resolved at query time
// in the requested locale.
package workflow
