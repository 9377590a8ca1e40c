// Package golden compares recorded traces with golden files.
package golden

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CompareTrace compares trace, one entry per line, with the
// golden file at path. If update is set, the golden file is
// replaced instead. On a mismatch, the trace is written to dumpDir
// if not empty.
func CompareTrace(path string, update bool, dumpDir string, trace []string) error {
	enc := encodeTrace(trace)
	if update {
		return os.WriteFile(path, enc, 0o640)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	golden, err := decodeTrace(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	mismatches := 0
	first := -1
	for i := range min(len(trace), len(golden)) {
		if trace[i] != golden[i] {
			if first == -1 {
				first = i
			}
			mismatches++
		}
	}
	if mismatches == 0 && len(trace) == len(golden) {
		return nil
	}
	if dumpDir != "" {
		fpath := filepath.Join(dumpDir, filepath.Base(path))
		if err := os.WriteFile(fpath, enc, 0o640); err != nil {
			return err
		}
	}
	if first == -1 {
		first = min(len(trace), len(golden))
	}
	return fmt.Errorf("trace lengths %d, %d, with %d/%d mismatches from line %d: %q",
		len(trace), len(golden), mismatches, len(golden), first+1, lineAt(trace, first))
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return "<end>"
}

func encodeTrace(trace []string) []byte {
	buf := new(bytes.Buffer)
	for _, l := range trace {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decodeTrace splits a golden file into lines, ignoring blank
// lines and lines starting with '#'.
func decodeTrace(b []byte) ([]string, error) {
	var lines []string
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		l := strings.TrimSpace(s.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	return lines, s.Err()
}
