package domain

import "strings"

// SafeName keeps ASCII letters, digits, '-' and '_' and replaces every other
// character with '_', so the result can be used in file and object names.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
