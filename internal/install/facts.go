package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/giantswarm/appenv/internal/process"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrUnparsableRuntime is returned by DetectRuntime when the probe command
// prints something other than "<version> [engine]".
const ErrUnparsableRuntime = sentinel.Error("unparsable runtime version output")

// DetectRuntime runs cmd, which must print the runtime version optionally
// followed by the engine name, and returns both. An absent engine is
// reported as "ruby".
func DetectRuntime(ctx context.Context, runner process.Runner, cmd process.Command) (version, engine string, err error) {
	out, err := runner.Run(ctx, cmd)
	if err != nil {
		return "", "", fmt.Errorf("detect runtime: %w", err)
	}
	return ParseRuntime(out)
}

// ParseRuntime parses the output of the runtime probe command.
func ParseRuntime(out string) (version, engine string, err error) {
	fields := strings.Fields(out)
	if len(fields) == 0 || Canonical(fields[0]) == "" {
		return "", "", fmt.Errorf("%q: %w", strings.TrimSpace(out), ErrUnparsableRuntime)
	}
	engine = "ruby"
	if len(fields) > 1 {
		engine = fields[1]
	}
	return fields[0], engine, nil
}
