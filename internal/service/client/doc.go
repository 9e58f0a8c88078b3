// Package client implements the siren-ctl side: one-shot control requests
// against the appliance's HTTP API.
package client
