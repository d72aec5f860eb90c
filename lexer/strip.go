package lexer

import "strings"

// stripStringWhitespace applies the whitespace stripping rules for raw
// string content:
//
//  1. Split into lines.
//  2. If the first line is blank, discard it.
//  3. If the last line is blank, record its whitespace as the common
//     prefix and discard it.
//  4. If the common prefix starts every non-blank line, strip it.
//  5. Rejoin with newlines.
//
// Blank interior lines do not prevent stripping.
func stripStringWhitespace(content string) string {
	if content == "" {
		return content
	}

	lines := strings.Split(content, "\n")

	if len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ""
	}

	commonPrefix := ""
	if isBlank(lines[len(lines)-1]) {
		commonPrefix = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	if commonPrefix != "" {
		canStrip := true
		for _, line := range lines {
			if !strings.HasPrefix(line, commonPrefix) && !isBlank(line) {
				canStrip = false
				break
			}
		}
		if canStrip {
			stripped := make([]string, len(lines))
			for i, line := range lines {
				if isBlank(line) {
					stripped[i] = line
				} else {
					stripped[i] = line[len(commonPrefix):]
				}
			}
			lines = stripped
		}
	}

	return strings.Join(lines, "\n")
}

// isBlank reports whether line contains only spaces and tabs.
func isBlank(line string) bool {
	for _, ch := range line {
		if ch != ' ' && ch != '\t' {
			return false
		}
	}
	return true
}
