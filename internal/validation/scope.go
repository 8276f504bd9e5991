package validation

import "regexp"

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScopeList valida cada nombre de una lista de scopes.
func ValidScopeList(names []string) bool {
	for _, n := range names {
		if !ValidScopeName(n) {
			return false
		}
	}
	return true
}
