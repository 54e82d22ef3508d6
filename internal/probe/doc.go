// Package probe decides whether a freshly spawned application server is up
// and which versions it runs.
//
// The server exposes a status endpoint whose plain-text body is a banner:
//
//	Rails version: 7.1.3
//	Ruby version: 3.2.2
//	Ruby engine: ruby
//
// Probe polls that endpoint, treating refused and reset connections as "not
// up yet", until the banner parses or the timeout elapses. TailLines grabs
// the end of the server log for failure reports.
package probe
