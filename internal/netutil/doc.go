// Package netutil picks listening ports for application instances.
// PortRegistry remembers every port it has handed out so two instances in the
// same process never share one, and bind-tests each candidate so a port held
// by some other process is skipped.
package netutil
