package core

import "fmt"

// State is the lifecycle position of an Instance. States only move forward,
// except that a stopped instance can be started again.
type State uint32

const (
	StateFresh State = iota
	StateDirectoriesPrepared
	StateDependenciesInstalled
	StateTemplateFilesOverlaid
	StateStarted
	StateVerified
	StateStopped
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateDirectoriesPrepared:
		return "DirectoriesPrepared"
	case StateDependenciesInstalled:
		return "DependenciesInstalled"
	case StateTemplateFilesOverlaid:
		return "TemplateFilesOverlaid"
	case StateStarted:
		return "Started"
	case StateVerified:
		return "Verified"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// setUp reports whether the workspace is ready to run a server.
func (s State) setUp() bool {
	return s >= StateTemplateFilesOverlaid
}
