package classify

import "strings"

// StripANSI removes ANSI escape sequences from terminal output in a single
// O(n) pass. Handled forms: CSI sequences (ESC [ ... terminated by a
// letter), OSC sequences (ESC ] ... terminated by BEL or ESC \), two-byte
// escapes (ESC plus one character), and the 8-bit CSI introducer 0x9B.
//
// The stripper is deliberately regex-free: backtracking regexes can blow up
// on malformed sequences, and untrusted terminal output is full of those.
// Malformed or truncated sequences are dropped best-effort; a sequence split
// across two chunks can leak its trailing bytes as literal text, which the
// classification heuristics tolerate.
func StripANSI(content string) string {
	// Fast path: no escape introducers, nothing to strip.
	if strings.IndexByte(content, '\x1b') < 0 && strings.IndexByte(content, '\x9b') < 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))

	i := 0
	for i < len(content) {
		switch content[i] {
		case '\x1b':
			if i+1 < len(content) && content[i+1] == '[' {
				i = skipCSI(content, i+2)
				continue
			}
			if i+1 < len(content) && content[i+1] == ']' {
				i = skipOSC(content, i)
				continue
			}
			// Two-byte escape, or a lone trailing ESC
			i += 2
		case '\x9b':
			i = skipCSI(content, i+1)
		default:
			b.WriteByte(content[i])
			i++
		}
	}

	return b.String()
}

// skipCSI advances past a CSI sequence body starting at i, returning the
// index just after the terminating letter. A truncated sequence consumes the
// rest of the input.
func skipCSI(s string, i int) int {
	for i < len(s) {
		c := s[i]
		i++
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			break
		}
	}
	return i
}

// skipOSC advances past an OSC sequence starting at the ESC at index i.
// OSC bodies end with BEL or the two-byte ST (ESC \). A truncated sequence
// consumes the rest of the input.
func skipOSC(s string, i int) int {
	if bell := strings.IndexByte(s[i:], '\x07'); bell >= 0 {
		return i + bell + 1
	}
	if st := strings.Index(s[i:], "\x1b\\"); st >= 0 {
		return i + st + 2
	}
	return len(s)
}
