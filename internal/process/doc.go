// Package process runs the external commands an application workspace needs.
//
// Exec runs short-lived commands (package installs, scaffolding) to
// completion and starts long-lived servers as Spawned handles whose combined
// output goes to a log file. Nothing here mutates the parent environment:
// every Command carries its own overrides and a list of variable prefixes to
// strip from the inherited environment.
//
// The package also has the PID helpers (ReadPIDFile, Kill, Alive, WaitExit)
// and WaitReady, the polling primitive used for PID files and readiness.
package process
