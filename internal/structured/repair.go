package structured

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// Repair applies best-effort string surgery to model output that failed to
// parse as JSON. The result is not guaranteed to be valid JSON.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripFence(s)
	s = trimProse(s)
	s = normalizeQuotes(s)
	s = dropTrailingCommas(s)
	return strings.TrimSpace(s)
}

func stripFence(s string) string {
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	// An unterminated fence still wraps the payload.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
	}
	return s
}

// trimProse cuts everything before the first opening bracket and after the
// last closing one.
func trimProse(s string) string {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "]}")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// normalizeQuotes rewrites single-quoted strings as double-quoted ones.
// Apostrophes inside double-quoted strings are left alone. Inside a
// single-quoted string, a quote only closes it when followed by a
// structural character, so "it's" survives.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	const (
		outside = iota
		inDouble
		inSingle
	)
	state := outside
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case outside:
			switch c {
			case '"':
				state = inDouble
			case '\'':
				state = inSingle
				c = '"'
			}
			b.WriteByte(c)
		case inDouble:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
				continue
			}
			if c == '"' {
				state = outside
			}
		case inSingle:
			switch {
			case c == '\\' && i+1 < len(s) && s[i+1] == '\'':
				b.WriteByte('\'')
				i++
			case c == '\\' && i+1 < len(s):
				b.WriteByte(c)
				i++
				b.WriteByte(s[i])
			case c == '"':
				b.WriteString(`\"`)
			case c == '\'' && closesSingle(s[i+1:]):
				b.WriteByte('"')
				state = outside
			default:
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func closesSingle(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	if rest == "" {
		return true
	}
	switch rest[0] {
	case ',', ':', '}', ']':
		return true
	}
	return false
}

// dropTrailingCommas removes a comma whose next non-space character closes
// an array or object. Commas inside strings are kept.
func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			rest := strings.TrimLeft(s[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == ']' || rest[0] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
