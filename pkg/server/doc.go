// Package server runs custodian's HTTP listener.
//
// Routes (trigger, metrics, health) are assembled by the serve command and
// wrapped here in the middleware chain, outermost first: recovery, request
// id, access logging, trace context extraction. Start blocks until its
// context is cancelled and then shuts down gracefully.
package server
