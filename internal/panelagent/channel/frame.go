package channel

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var errBadName = errors.New("name must be non-empty and must not contain '=' or a line break")

// encodeLine renders one value as a "name=value" line.
func encodeLine(name, value string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "=\r\n") {
		return nil, fmt.Errorf("%q: %w", name, errBadName)
	}
	if strings.ContainsAny(value, "\r\n") {
		return nil, fmt.Errorf("value of %q must not contain a line break", name)
	}
	return []byte(name + "=" + value + "\n"), nil
}

// decodeLines calls fn for every "name=value" line in a datagram. Blank and
// malformed lines are skipped.
func decodeLines(datagram []byte, fn func(name, value string)) (skipped int) {
	for line := range bytes.SplitSeq(datagram, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		name, value, ok := bytes.Cut(line, []byte{'='})
		if !ok || len(name) == 0 {
			skipped++
			continue
		}
		fn(string(name), string(value))
	}
	return skipped
}
