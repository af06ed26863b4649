// Package trigger exposes the retention engine over HTTP.
//
// The scheduler POSTs to the fleet route with the shared secret in a header;
// operators can purge a single tenant through the per-tenant route. A request
// without a configured server secret fails with 500, and one with a missing
// or wrong secret fails with 403, before any tenant is touched. The dry-run
// flag comes from configuration and is echoed in every response.
package trigger
