package journal

import (
	"fmt"
	"regexp"
	"strconv"
)

// objectKeyName builds the S3 key for one journal object:
// <dir>/<id>-<file number, zero-padded to 6>.journal[.<suffix>].
func objectKeyName(dir, id string, fileNumber int64, suffix string) string {
	key := fmt.Sprintf("%s/%s-%06d.journal", dir, id, fileNumber)
	if suffix != "" {
		key += "." + suffix
	}
	return key
}

// keyPattern reverse-parses an object key into its directory, journal id and
// file number. The optional compression suffix is ignored.
var keyPattern = regexp.MustCompile(`^(.*)/([^/]+)-(\d+)\.journal(?:\.[^/.]+)?$`)

// parseObjectKey extracts (dir, id, fileNumber) from an object key. ok is
// false for keys other journal versions or other writers produced.
func parseObjectKey(key string) (dir, id string, fileNumber int64, ok bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return "", "", 0, false
	}
	n, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return "", "", 0, false
	}
	return m[1], m[2], n, true
}
