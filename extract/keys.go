package extract

import (
	"strconv"
	"strings"
)

// recordKey builds a dedupe key from column values. The separator does not
// occur in addresses, type tags or registered names.
func recordKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func versionKey(version uint64) string {
	return strconv.FormatUint(version, 10)
}
