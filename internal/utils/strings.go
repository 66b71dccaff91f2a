// Package utils holds small formatting helpers shared across the bridge.
package utils

import "strings"

// FormatSpaces escapes control characters in s so the link package can log
// outgoing dialect commands (which end in \r\n) on one readable line.
func FormatSpaces(s []byte) string {
	buf := strings.Builder{}
	for _, c := range s {
		switch c {
		case '\t':
			buf.WriteString(`\t`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\v':
			buf.WriteString(`\v`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
