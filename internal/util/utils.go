package util

import (
	"bytes"
	"fmt"
)

// GetLineAndColumn converts a byte offset into 1-based line and column.
func GetLineAndColumn(src []byte, pos int) (line int, column int) {
	line = 1
	column = 1
	for i, char := range src {
		if i == pos {
			break
		}
		if char == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return
}

// ContextLines renders up to two lines before the line holding pos, then
// that line with a caret under pos.
func ContextLines(src []byte, pos int) string {
	if pos > len(src) {
		pos = len(src)
	}
	errorLine, errorCol := GetLineAndColumn(src, pos)
	lines := bytes.Split(src, []byte("\n"))

	var result bytes.Buffer
	startLine := errorLine - 2
	if startLine < 1 {
		startLine = 1
	}
	for i := startLine; i <= errorLine && i <= len(lines); i++ {
		lineContent := string(bytes.TrimRight(lines[i-1], "\r"))
		if i == errorLine {
			margin := fmt.Sprintf("  >  %3d | ", i)
			result.WriteString(margin + lineContent + "\n")
			prefix := lineContent
			if errorCol-1 < len(prefix) {
				prefix = prefix[:errorCol-1]
			}
			result.WriteString(replaceVisibleWithSpaces(margin+prefix) + "^")
		} else {
			result.WriteString(fmt.Sprintf("     %3d | %s\n", i, lineContent))
		}
	}
	return result.String()
}

// replaceVisibleWithSpaces replaces all non-whitespace characters with spaces
// while preserving tabs for correct alignment.
func replaceVisibleWithSpaces(s string) string {
	var buf bytes.Buffer
	for _, c := range s {
		if c == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}
	return buf.String()
}
