package version

import (
	"strings"
	"testing"
)

func TestVersionStringNonEmpty(t *testing.T) {
	if s := String(); s == "" {
		t.Fatalf("version string is empty")
	}
}

func TestVersionStringIncludesCommit(t *testing.T) {
	old := Commit
	Commit = "deadbee"
	t.Cleanup(func() { Commit = old })
	if s := String(); !strings.Contains(s, Version) || !strings.Contains(s, "(deadbee)") {
		t.Fatalf("String() = %q", s)
	}
}
