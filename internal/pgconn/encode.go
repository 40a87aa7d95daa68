package pgconn

import (
	"regexp"
	"strings"
)

var (
	// a space, a '%' not followed by hex, or a '%' followed by a single hex digit
	malformedEscape = regexp.MustCompile(`(?i) |%[^a-f0-9]|%[a-f0-9][^a-f0-9]`)
	// %25 followed by two digits was a valid escape before encodeURI touched it
	doubleEncoded = regexp.MustCompile(`%25(\d\d)`)
)

// normalizeEscapes percent-encodes a connection string that contains spaces
// or stray '%' characters while keeping its already valid numeric escapes.
func normalizeEscapes(s string) string {
	if !malformedEscape.MatchString(s) {
		return s
	}
	return doubleEncoded.ReplaceAllString(encodeURI(s), "%$1")
}

const uriReserved = ";,/?:@&=+$#"
const uriMark = "-_.!~*'()"

// encodeURI escapes every byte outside the URI reserved set, the unreserved
// marks and ASCII alphanumerics. '%' itself is escaped.
func encodeURI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte(uriReserved, c) >= 0 || strings.IndexByte(uriMark, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
