package planparse

import (
	"regexp"
	"strings"
)

var (
	fencedBlock    = regexp.MustCompile("```(?i:json)?\\s*([\\s\\S]*?)\\s*```")
	trailingObject = regexp.MustCompile(`,\s*}`)
	trailingArray  = regexp.MustCompile(`,\s*]`)
	bareKey        = regexp.MustCompile(`([{,])\s*([a-zA-Z0-9_]+)\s*:`)
)

// extract finds the candidate JSON text in a model response: the interior of
// the first fenced code block, else the span from the first '{' to the last
// '}'.
func extract(raw string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// flatten removes line breaks. Models put raw newlines inside string values,
// which strict JSON rejects.
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}

// repairs returns progressively more aggressive rewrites of candidate to be
// tried in order. The first drops comments and trailing commas. The second
// also turns single quotes into double quotes and quotes bare keys; it is
// lossy, since an apostrophe inside a string value becomes a double quote.
func repairs(candidate string) []string {
	gentle := flatten(stripComments(candidate))
	gentle = trailingObject.ReplaceAllString(gentle, "}")
	gentle = trailingArray.ReplaceAllString(gentle, "]")

	lossy := strings.ReplaceAll(gentle, "'", `"`)
	lossy = bareKey.ReplaceAllString(lossy, `$1"$2":`)
	return []string{gentle, lossy}
}

// stripComments removes // line comments and /* */ block comments that are
// outside string literals. Newlines ending line comments are kept.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += 2 + end + 1
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
