// Package logging configures log/slog for custodian.
//
// Setup installs a JSON or text handler as the slog default. Components tag
// their records with a "component" attribute; values under keys such as
// "secret" or "dsn" are masked, and a request id stored with WithRequestID is
// added to records logged with that context.
package logging
