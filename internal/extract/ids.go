// Content-derived identifiers. Every ID is a prefix plus a hex sha256 of the
// identifying content, so repeated runs over the same input produce the same
// IDs on any machine.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Relationship row ID tags, one per table.
const (
	TagProcessRecord = "prr"
	TagProcessValue  = "pvr"
	TagRecordValue   = "rvr"
	TagValueValue    = "vvr"
	TagSourceProcess = "spr"
)

// keySep separates the key columns inside a relationship hash. It never
// appears in IDs themselves (they are prefix + hex), so keys cannot collide
// by concatenation.
const keySep = "|"

// DeterministicID returns "<prefix>_<hex(sha256(content))>".
func DeterministicID(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + "_" + hex.EncodeToString(sum[:])
}

// RelationshipID derives a relationship row ID from the relationship type
// and its key columns in declaration order: "<tag>_<hex(sha256(...))>".
func RelationshipID(tag, relationshipType string, keys ...string) string {
	h := sha256.New()
	h.Write([]byte(relationshipType))
	for _, k := range keys {
		h.Write([]byte(keySep))
		h.Write([]byte(k))
	}
	return tag + "_" + hex.EncodeToString(h.Sum(nil))
}

// FormatValueIdentity expands a profile's value_format template, replacing
// the literal placeholders {value_type} and {value_content}.
func FormatValueIdentity(format, valueType, content string) string {
	s := strings.ReplaceAll(format, "{value_type}", valueType)
	return strings.ReplaceAll(s, "{value_content}", content)
}
