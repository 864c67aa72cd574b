package utils

import "strings"

// HasPrefixIgnoreCase checks if string has prefix case-insensitively
func HasPrefixIgnoreCase(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}

// CollapseWhitespace rewrites any run of spaces and tabs as a single space
// and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeCommand canonicalizes a command line for identity purposes:
// backtick line-continuation artifacts are removed and whitespace runs are
// collapsed. The result keeps its original casing; callers lowercase for
// case-insensitive comparison.
func NormalizeCommand(s string) string {
	s = strings.ReplaceAll(s, "`\n", " ")
	s = strings.ReplaceAll(s, "`\r\n", " ")
	return CollapseWhitespace(s)
}
