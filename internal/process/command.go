package process

import (
	"fmt"
	"os"
	"strings"
)

// Command describes one invocation of an external program.
type Command struct {
	// Dir is the working directory. It must not be empty.
	Dir string
	// Args is the program followed by its arguments.
	Args []string
	// Env holds KEY=VALUE overrides applied on top of the inherited
	// environment.
	Env []string
	// Scrub lists variable-name prefixes removed from the inherited
	// environment before Env is applied.
	Scrub []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Environ returns the environment the command runs with.
func (c Command) Environ() []string {
	return BuildEnv(os.Environ(), c.Scrub, c.Env)
}

// BuildEnv drops entries of base whose name starts with any scrub prefix and
// then applies overrides, replacing existing keys in place and appending new
// ones in order.
func BuildEnv(base, scrub, overrides []string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))

	for _, kv := range base {
		key := envKey(kv)
		if hasAnyPrefix(key, scrub) {
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}

	for _, kv := range overrides {
		key := envKey(kv)
		if i, ok := index[key]; ok {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	return out
}

func envKey(kv string) string {
	key, _, _ := strings.Cut(kv, "=")
	return key
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// CommandError reports a command that could not be run or exited non-zero.
// Output holds the combined stdout and stderr.
type CommandError struct {
	Dir      string
	Command  string
	ExitCode int // -1 when the process never produced an exit status
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed in directory %s: %s (exit code %d): %v\noutput:\n%s",
		e.Dir, e.Command, e.ExitCode, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
