// Package catalog maintains the categories_metadata index: for every tracked
// category field, the set of values held by at least one live song.
//
// The work is split in two halves. [Plan] is pure: it diffs the before and after
// snapshots of one song and returns the index [Mutation]s the write implies.
// [Synchronizer] applies mutations against an [Index], checking
// [Liveness] before pruning a value.
//
// Mutations for all fields run concurrently; every task settles before Apply returns
// and failures are joined into one error. Re-applying the same plan is harmless:
// unions are idempotent and a repeated prune re-checks the same liveness.
//
// [Reconciler] sweeps the whole song collection and repairs values the incremental
// path left behind, such as a prune that failed on a transient store error.
package catalog
