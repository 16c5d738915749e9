package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7ProducesDistinctVersion7IDs(t *testing.T) {
	gen := UUIDv7()
	a, b := gen(), gen()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse %s: %v", a, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("version = %d, want 7", parsed.Version())
	}
}

func TestPrefixedAndSequence(t *testing.T) {
	gen := Prefixed("att_", Sequence("n"))
	if got := gen(); got != "att_n1" {
		t.Fatalf("first id = %s, want att_n1", got)
	}
	if got := gen(); got != "att_n2" {
		t.Fatalf("second id = %s, want att_n2", got)
	}
	if !strings.HasPrefix(Prefixed("req_", UUIDv7())(), "req_") {
		t.Fatalf("prefix missing")
	}
}
