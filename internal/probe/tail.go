package probe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// tailBlockSize is how much TailLines reads per backward step.
const tailBlockSize = 4096

// TailLines returns up to the last n lines of the file at path, oldest
// first, without reading the whole file. A trailing newline does not count
// as an extra empty line.
func TailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: workspace log path
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	var (
		buf []byte
		pos = info.Size()
	)
	for pos > 0 && bytes.Count(buf, []byte("\n")) <= n {
		step := min(int64(tailBlockSize), pos)
		pos -= step
		block := make([]byte, step)
		if _, err := f.ReadAt(block, pos); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read log: %w", err)
		}
		buf = append(block, buf...)
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
