// Custodian enforces tenant data retention.
//
// It deletes messages, model invocations and audit logs older than each
// tenant's retention window, removes threads left without messages, skips
// tenants under legal hold, and writes one audit entry per tenant run.
//
// Usage:
//
//	# Serve the retention trigger, metrics and health endpoints
//	custodian serve --config /etc/custodian/config.yaml
//
//	# Call the trigger every hour
//	custodian schedule
//
//	# Purge one tenant now, counting only
//	custodian purge --org 3f0c... --dry-run
//
//	# Apply database migrations
//	custodian migrate
package main

func main() {
	Execute()
}
