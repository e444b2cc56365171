package types

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// FormatVersion renders a snapshot version tag ("v3").
func FormatVersion(n int) string {
	return "v" + strconv.Itoa(n)
}

// ParseVersion parses a snapshot version tag of the form v<N>.
func ParseVersion(tag string) (int, error) {
	if !strings.HasPrefix(tag, "v") {
		return 0, fmt.Errorf("invalid version tag %q (expected v<N>)", tag)
	}
	n, err := strconv.Atoi(tag[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid version tag %q (expected v<N>)", tag)
	}
	return n, nil
}

// NextVersion returns the tag that follows tag.
func NextVersion(tag string) (string, error) {
	n, err := ParseVersion(tag)
	if err != nil {
		return "", err
	}
	return FormatVersion(n + 1), nil
}

// VersionGreater reports whether node version a is strictly newer than b.
// Node versions are semantic tags ("v2", "v1.3", "v1.3.1"); an empty b is
// older than any valid a.
func VersionGreater(a, b string) bool {
	if !semver.IsValid(a) {
		return false
	}
	if b == "" || !semver.IsValid(b) {
		return true
	}
	return semver.Compare(a, b) > 0
}

// ValidNodeVersion reports whether v is an acceptable node version tag.
func ValidNodeVersion(v string) bool {
	return semver.IsValid(v)
}
