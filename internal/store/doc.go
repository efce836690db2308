// Package store is the durable task record layer.
//
// It owns the task lifecycle state machine (PENDING -> RUNNING ->
// COMPLETED/FAILED) and the claim step workers use to take exclusive
// ownership of a pending task. It also keeps the optional local registry of
// scheduled-job registrations.
package store
