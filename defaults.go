package appenv

import "time"

// Default configuration values for NewRegistry.
// These constants are exported so callers can reference the defaults
// when building custom configurations relative to them (e.g.,
// 2 * DefaultVerifyTimeout).
const (
	// DefaultBaseDirName is the directory name under the system temp
	// directory where workspaces are created. The full path is computed
	// as filepath.Join(os.TempDir(), DefaultBaseDirName).
	DefaultBaseDirName = "appenv"

	// DefaultHost is the loopback address servers are reached on.
	DefaultHost = "127.0.0.1"

	// DefaultPortMin and DefaultPortMax bound the ports servers are given,
	// DefaultPortMax exclusive.
	DefaultPortMin = 20000
	DefaultPortMax = 30000

	// DefaultPollInterval is how often the PID file, the status endpoint
	// and a stopping process are checked.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultPIDTimeout is how long a spawned server has to write its PID
	// file.
	DefaultPIDTimeout = 30 * time.Second

	// DefaultVerifyTimeout is how long a server has to answer its status
	// endpoint with the expected banner. Applications that load a lot of
	// code at boot may need more.
	DefaultVerifyTimeout = 30 * time.Second

	// DefaultStopTimeout is how long a killed server has to disappear.
	DefaultStopTimeout = 20 * time.Second

	// DefaultLockTimeout bounds the wait for another process setting up a
	// workspace of the same version. It must cover that whole setup.
	DefaultLockTimeout = 30 * time.Minute

	// DefaultSetupTimeout bounds one setup, dominated by dependency
	// installation over the network.
	DefaultSetupTimeout = 30 * time.Minute

	// DefaultLogLines is how many trailing server log lines a
	// *StartupError carries.
	DefaultLogLines = 100

	// DefaultFetchRetries is how often an install attempt is repeated
	// after a remote-fetch connection failure.
	DefaultFetchRetries = 5
)
