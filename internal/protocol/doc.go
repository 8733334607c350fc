// Package protocol defines the wire format between the kiln CLI and the
// daemon: newline-delimited JSON envelopes carrying a command name and a
// typed payload. Each connection is a single request-response exchange.
package protocol
