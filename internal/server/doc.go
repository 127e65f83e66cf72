// Package server wires the reading club together: the SQLite store, the
// chapter library, and the web UI behind a single HTTP listener.
//
// The listener is either plain TCP or a Tailscale tsnet node, optionally
// with tailnet HTTPS or public Funnel exposure. Run blocks until the
// context is canceled, then shuts the HTTP server down gracefully.
package server
