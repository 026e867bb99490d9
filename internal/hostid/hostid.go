// Package hostid resolves the default journal identifier.
package hostid

import (
	"os"
	"strings"
)

// Default returns the identifier baked into object keys when the journal
// configuration does not set one explicitly. It is the local hostname with
// characters that would collide with the object-key grammar replaced.
func Default() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "journal"
	}

	// '/' would break the key into extra directories and '-' is the id/file
	// separator in the key grammar.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
