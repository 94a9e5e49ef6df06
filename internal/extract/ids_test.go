package extract

import (
	"strings"
	"testing"
)

func TestDeterministicID(t *testing.T) {
	t.Parallel()

	a := DeterministicID("rec", "10.1/x")
	b := DeterministicID("rec", "10.1/x")
	c := DeterministicID("rec", "10.1/y")

	if a != b {
		t.Fatalf("same content produced different IDs: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("different content produced the same ID")
	}
	if !strings.HasPrefix(a, "rec_") {
		t.Fatalf("ID prefix = %q", a)
	}
	// prefix + "_" + 64 hex chars of sha256.
	if got := len(a); got != len("rec_")+64 {
		t.Fatalf("len(ID) = %d, want %d", got, len("rec_")+64)
	}
	if strings.ToLower(a) != a {
		t.Fatalf("ID not lower-case hex: %q", a)
	}
}

func TestRelationshipID(t *testing.T) {
	t.Parallel()

	a := RelationshipID(TagRecordValue, "has_author", "rec_1", "val_1", "0")
	b := RelationshipID(TagRecordValue, "has_author", "rec_1", "val_1", "0")
	if a != b {
		t.Fatalf("not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "rvr_") {
		t.Fatalf("tag prefix = %q", a)
	}

	// Every key column participates in the identity.
	variants := []string{
		RelationshipID(TagRecordValue, "has_author", "rec_1", "val_1", "1"),
		RelationshipID(TagRecordValue, "has_editor", "rec_1", "val_1", "0"),
		RelationshipID(TagRecordValue, "has_author", "rec_2", "val_1", "0"),
		RelationshipID(TagRecordValue, "has_author", "rec_1", "val_2", "0"),
	}
	for i, v := range variants {
		if v == a {
			t.Fatalf("variant %d collided with base ID", i)
		}
	}

	// Key boundaries matter: ("ab","c") must differ from ("a","bc").
	x := RelationshipID(TagValueValue, "t", "ab", "c")
	y := RelationshipID(TagValueValue, "t", "a", "bc")
	if x == y {
		t.Fatal("key concatenation ambiguity")
	}
}

func TestFormatValueIdentity(t *testing.T) {
	t.Parallel()

	got := FormatValueIdentity("{value_type}:{value_content}", "author_name", "Ada Lovelace")
	if got != "author_name:Ada Lovelace" {
		t.Fatalf("identity = %q", got)
	}

	// Placeholders may appear in any order and with surrounding text.
	got = FormatValueIdentity("v1|{value_content}|{value_type}", "t", "c")
	if got != "v1|c|t" {
		t.Fatalf("identity = %q", got)
	}
}
