package sqlgen

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxIdentifierLength is the sysname limit.
const MaxIdentifierLength = 128

// ValidateIdentifier rejects names that could escape a bracketed identifier
// or an N'...' literal once interpolated into generated T-SQL.
func ValidateIdentifier(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("identifier is empty")
	}
	if utf8.RuneCountInString(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d characters", name, MaxIdentifierLength)
	}
	if strings.Contains(name, "--") || strings.Contains(name, "/*") {
		return fmt.Errorf("identifier %q contains a comment sequence", name)
	}
	for _, r := range name {
		switch {
		case r == ']' || r == '[' || r == '\'' || r == '"' || r == ';':
			return fmt.Errorf("identifier %q contains forbidden character %q", name, r)
		case unicode.IsControl(r):
			return fmt.Errorf("identifier %q contains a control character", name)
		}
	}
	return nil
}

// EscapeLiteral doubles single quotes so s can sit inside N'...'.
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
