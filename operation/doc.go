// Package operation runs one candidate edit through the lock, validate,
// apply and commit-or-rollback sequence.
//
// An operation goes through these states:
//
//	Proposed -> Locked -> Validated -> Applied -> Committed
//	                                          \-> RolledBack
//
// Domain behaviour is plugged in per Kind through a Hooks table. Hooks read
// and write attributes through the worker's scope stack; nothing becomes
// visible to other workers until the executor commits.
//
// Expected conditions (rejection, stale handles, lock contention) are
// reported through Report.Outcome. The error return is reserved for broken
// invariants, which abort the current run.
package operation
