/*
Package fleet tracks the recorded compute fleet status of every cluster.

For self-managed schedulers the fleet is started and stopped by flipping this
recorded status rather than by touching the stack, so two operators issuing
start/stop concurrently must not overwrite each other. The store therefore
exposes only a conditional write: CompareAndSwap fails with a distinct
*ConcurrentUpdateError when the recorded status changed underneath the caller,
who then re-reads and retries.

The status lifecycle is:

	STOPPED ──start──▶ STARTING ──▶ RUNNING
	RUNNING ──stop───▶ STOPPING ──▶ STOPPED

A cluster with no record reports UNKNOWN; the first transition out of UNKNOWN
is written with CompareAndSwap(cluster, UNKNOWN, ...) like any other.

BoltStore is the production implementation, one BoltDB bucket keyed by cluster
name. The bolt update transaction serializes writers, which makes the
compare-and-swap atomic without additional locking.
*/
package fleet
