package validation

import (
	"strings"
	"testing"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"openid",
		"profile",
		"offline_access",
		"certs:read",
		"a_b-c.d:scope2",
		strings.Repeat("a", 64),
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",
		":lead",
		"trail:",
		"bad space",
		"UPPER",
		"semicolon;hack",
		strings.Repeat("a", 65),
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestValidScopeList(t *testing.T) {
	if !ValidScopeList([]string{"openid", "profile"}) {
		t.Fatal("expected valid list")
	}
	if ValidScopeList([]string{"openid", "BAD"}) {
		t.Fatal("expected invalid list")
	}
}
