// Package client issues HTTP requests against a running application server
// on its loopback port.
//
// Requests name a path relative to the server root. Non-200 answers are an
// error by default; StatusNilOnError and StatusIgnore relax that for tests
// that expect failures.
package client
