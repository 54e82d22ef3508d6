package mailbox

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrNoMail is returned by Read when nothing was delivered to the address.
// It matches fs.ErrNotExist as well.
const ErrNoMail = sentinel.Error("no mail for address")

// ErrUnexpectedLine is returned for a header section line that is neither a
// header nor a continuation.
const ErrUnexpectedLine = sentinel.Error("unexpected line in mail")

var (
	headerLine       = regexp.MustCompile(`^(\S+):\s+(.*?)\s*$`)
	continuationLine = regexp.MustCompile(`^\s+(.*?)\s*$`)
	// Only entries that look like addresses are cleared.
	addressEntry = regexp.MustCompile(`^\S.*@`)
)

// Message is one delivered mail. Every body line ends in a newline.
type Message struct {
	Headers map[string]string
	Body    string
}

type noMailError struct {
	path string
	err  error
}

func (e *noMailError) Error() string { return fmt.Sprintf("%s: %s", ErrNoMail, e.path) }
func (e *noMailError) Unwrap() []error {
	return []error{ErrNoMail, e.err}
}

// Read parses the mail delivered to address in dir.
func Read(dir, address string) (*Message, error) {
	path := filepath.Join(dir, address)
	f, err := os.Open(path) //nolint:gosec // G304: mailbox path under the workspace
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logMissing(dir, address)
			return nil, &noMailError{path: path, err: err}
		}
		return nil, fmt.Errorf("open mail: %w", err)
	}
	defer f.Close()

	msg := &Message{Headers: map[string]string{}}
	var (
		body    strings.Builder
		inBody  bool
		last    string
		lineNum int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case inBody:
			body.WriteString(line)
			body.WriteByte('\n')
		case strings.TrimSpace(line) == "":
			inBody = true
		default:
			if m := headerLine.FindStringSubmatch(line); m != nil {
				last = m[1]
				msg.Headers[last] = m[2]
				continue
			}
			if m := continuationLine.FindStringSubmatch(line); m != nil && last != "" {
				msg.Headers[last] += " " + m[1]
				continue
			}
			return nil, fmt.Errorf("%w %s:%d: %q", ErrUnexpectedLine, path, lineNum, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mail %s: %w", path, err)
	}
	msg.Body = trimTrailingBlank(body.String())
	return msg, nil
}

// trimTrailingBlank drops the empty lines a trailing run of newlines leaves
// at the end of the body, keeping the final line's newline.
func trimTrailingBlank(s string) string {
	for strings.HasSuffix(s, "\n\n") {
		s = s[:len(s)-1]
	}
	if s == "\n" {
		return ""
	}
	return s
}

// Clear deletes every delivered mail in dir. A missing dir holds no mail.
func Clear(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list mailbox: %w", err)
	}
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !addressEntry.MatchString(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Addresses lists the recipients that have mail in dir.
func Addresses(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list mailbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if name := e.Name(); !strings.HasPrefix(name, ".") && addressEntry.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func logMissing(dir, address string) {
	addrs, err := Addresses(dir)
	if err != nil {
		slog.Default().Warn("no mails: mailbox directory missing", "address", address, "dir", dir)
		return
	}
	slog.Default().Warn("no mails for address", "address", address, "dir", dir, "present", addrs)
}
