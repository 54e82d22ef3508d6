package core

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestStartupError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	tests := map[string]struct {
		err        *StartupError
		want       []string
		wantAbsent []string
	}{
		"with log excerpt": {
			err: &StartupError{
				Elapsed:   20 * time.Second,
				Cause:     cause,
				LogPath:   "/w/log/rails-server.out",
				LastLines: []string{"boot", "SyntaxError"},
			},
			want: []string{"after 20s", "connection refused", "/w/log/rails-server.out", "last 2 lines", "boot\nSyntaxError"},
		},
		"without log": {
			err:        &StartupError{Elapsed: time.Second, Cause: cause},
			want:       []string{"connection refused"},
			wantAbsent: []string{"server output is in", "lines of the log"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			msg := tc.err.Error()
			for _, w := range tc.want {
				if !strings.Contains(msg, w) {
					t.Errorf("error %q should contain %q", msg, w)
				}
			}
			for _, w := range tc.wantAbsent {
				if strings.Contains(msg, w) {
					t.Errorf("error %q should not contain %q", msg, w)
				}
			}
			if !errors.Is(tc.err, cause) {
				t.Error("StartupError should unwrap to its cause")
			}
		})
	}
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := &TimeoutError{Op: "start server", Elapsed: 1500 * time.Millisecond, Path: "/w/tmp/pids/server.pid", Err: fs.ErrNotExist}
	msg := err.Error()
	for _, w := range []string{"start server", "1.5s", "/w/tmp/pids/server.pid"} {
		if !strings.Contains(msg, w) {
			t.Errorf("error %q should contain %q", msg, w)
		}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("TimeoutError should unwrap to Err")
	}
}

func TestSelectionErrorWithoutNames(t *testing.T) {
	t.Parallel()

	err := &SelectionError{Err: ErrNoInstances}
	if err.Error() != ErrNoInstances.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateFresh:                 "Fresh",
		StateTemplateFilesOverlaid: "TemplateFilesOverlaid",
		StateStopped:               "Stopped",
		State(42):                  "State(42)",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
