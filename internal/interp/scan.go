package interp

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

// peek returns src[i] when i is inside the window, 0 otherwise. It is the
// only lookahead the scanners use, so nothing reads past e.
func peek(src []byte, i, e int) byte {
	if i < 0 || i >= e || i >= len(src) {
		return 0
	}
	return src[i]
}

func skipSpace(src []byte, s, e int) int {
	for s < e && isSpace(src[s]) {
		s++
	}
	return s
}

// hasWord reports whether word starts at s and is not followed by another
// identifier character inside the window.
func hasWord(src []byte, s, e int, word string) bool {
	if e-s < len(word) {
		return false
	}
	if string(src[s:s+len(word)]) != word {
		return false
	}
	return !isIdentChar(peek(src, s+len(word), e))
}

// hasPrefix reports whether src[s:e] starts with p.
func hasPrefix(src []byte, s, e int, p string) bool {
	return e-s >= len(p) && string(src[s:s+len(p)]) == p
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
