// Package fixtures resolves fixture keys to document markup.
//
// Built-in fixtures (login, search, form) are embedded in the binary. A TOML
// catalog can add keys or override built-ins with three kinds of location:
//
//	embed://login.html      an embedded page
//	fixtures/custom.html    a file on disk
//	https://host/page.html  fetched over HTTP behind a circuit breaker
//
// Every fetch is validated as text and converted to UTF-8 before it is
// handed to the caller. Fetch failures are reported as *FetchError and are
// never retried.
package fixtures
