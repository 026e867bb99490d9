package journal

import (
	"fmt"
	"strings"
	"time"
)

// timeFormat renders and parses the time-partition directory.
//
// The accepted grammar is ['literal'/]pattern where the optional
// single-quoted literal (with its trailing slash) becomes a fixed key prefix
// and pattern combines the tokens yyyy MM dd HH mm ss with literal
// separators, e.g. "yyyy/MM/dd" or "'archive'/yyyy/MM/dd/HH". All rendering
// and parsing happens in UTC.
type timeFormat struct {
	prefix  string // fixed key prefix, "" or ends with "/"
	layout  string // Go reference-time layout for the time part
	pattern string // original pattern, for error messages
}

var formatTokens = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// parseTimeFormat validates a directory-format pattern.
func parseTimeFormat(pattern string) (*timeFormat, error) {
	if pattern == "" {
		return nil, fmt.Errorf("directory format is empty")
	}

	prefix := ""
	rest := pattern
	if strings.HasPrefix(rest, "'") {
		end := strings.Index(rest[1:], "'")
		if end < 0 {
			return nil, fmt.Errorf("directory format %q: unterminated literal", pattern)
		}
		literal := rest[1 : 1+end]
		rest = rest[2+end:]
		if !strings.HasPrefix(rest, "/") {
			return nil, fmt.Errorf("directory format %q: literal must be followed by '/'", pattern)
		}
		rest = rest[1:]
		prefix = literal + "/"
	}

	layout := formatTokens.Replace(rest)

	// Anything alphabetic left over is a token this grammar does not know.
	for _, r := range layout {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return nil, fmt.Errorf("directory format %q: unsupported token near %q", pattern, string(r))
		}
	}

	return &timeFormat{prefix: prefix, layout: layout, pattern: pattern}, nil
}

// Format renders the directory for t.
func (f *timeFormat) Format(t time.Time) string {
	return f.prefix + t.UTC().Format(f.layout)
}

// Parse recovers the partition time from a directory string. It is the
// inverse of Format for directories this journal produced.
func (f *timeFormat) Parse(dir string) (time.Time, error) {
	rest, ok := strings.CutPrefix(dir, f.prefix)
	if !ok {
		return time.Time{}, fmt.Errorf("directory %q does not match prefix %q", dir, f.prefix)
	}
	t, err := time.ParseInLocation(f.layout, rest, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("directory %q does not match format %q: %w", dir, f.pattern, err)
	}
	return t, nil
}

// Prefix returns the fixed key prefix, "" when the pattern has no literal.
func (f *timeFormat) Prefix() string {
	return f.prefix
}
