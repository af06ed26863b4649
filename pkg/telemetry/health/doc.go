// Package health serves liveness and readiness probes.
//
// Liveness always succeeds. Readiness runs the registered checks, which for
// custodian is a ping of the configured store, and answers 503 while any of
// them fails.
package health
