// Package scheduler triggers calendar imports on a fixed interval.
//
// The last successful sync time is persisted through a LastSyncStore, either
// in the ledger settings table or in Redis, so restarts and sibling processes
// sharing the store do not re-import early. Only one run is in flight per
// Scheduler; runs in separate processes are not coordinated.
package scheduler
