// Package web serves the reading club's browser UI and chapter API.
//
// The UI is server-rendered html/template pages with htmx partials:
// bookcase shelf pages, the chapter reader, login, and invite signup.
// Browser sessions use an opaque cookie backed by a server-side row,
// with double-submit CSRF protection on forms. Passkey login is
// available alongside passwords. The /api/chapters endpoints accept
// JWT bearer tokens for publishing scripts.
package web
