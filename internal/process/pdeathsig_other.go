//go:build !linux

package process

import "os/exec"

// setParentDeathSignal does nothing outside Linux; servers left behind by a
// crashed test binary must be killed by hand.
func setParentDeathSignal(*exec.Cmd) {}
