// Package web implements the HTTP transport for the siren appliance.
//
// Handlers are a thin wrapper: uploads are validated and converted here,
// everything else is enqueued as commands for the coordinator or read from
// the status reporter. Command acceptance and command completion are
// decoupled; callers poll /api/status using the returned correlation id.
package web
