// Package auth provides JWT bearer tokens for the chapter management API.
// Browser sessions are handled separately by the web package.
package auth
