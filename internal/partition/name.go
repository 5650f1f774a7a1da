package partition

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Prefix is prepended to every partition table name.
const Prefix = "org_"

// maxIdentifierLen is the PostgreSQL NAMEDATALEN limit minus the terminator.
const maxIdentifierLen = 63

// DeriveName maps an organization name to its partition name: lower-cased,
// spaces and hyphens replaced by underscores, prefixed with "org_".
//
// Names that would exceed the identifier limit are cut short and suffixed with
// a hash of the full derived name, so PostgreSQL never truncates two distinct
// names to the same table.
func DeriveName(organizationName string) string {
	name := strings.ToLower(organizationName)
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	name = Prefix + name

	if len(name) <= maxIdentifierLen {
		return name
	}

	suffix := fmt.Sprintf("_%016x", xxhash.Sum64String(name))
	cut := maxIdentifierLen - len(suffix)
	// do not split a multi-byte rune
	for cut > 0 && !isRuneStart(name[cut]) {
		cut--
	}
	return name[:cut] + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ValidName reports whether name looks like a partition produced by
// DeriveName. It guards the operator entry points that accept raw names.
func ValidName(name string) bool {
	if !strings.HasPrefix(name, Prefix) || len(name) <= len(Prefix) || len(name) > maxIdentifierLen {
		return false
	}
	for _, r := range name {
		if r == ' ' || r == '-' || r == '"' || r == '\'' || r == ';' || r < 0x20 {
			return false
		}
	}
	return name == strings.ToLower(name)
}
