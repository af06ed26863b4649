// Package schedule is the timer that drives retention: on each cron tick it
// POSTs to the trigger endpoint with the shared secret. Failed calls are
// logged and left for the next tick.
package schedule
