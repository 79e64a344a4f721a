package stream

import (
	"strconv"
	"strings"
)

// splitPath breaks a dotted/bracketed field path into flat segments:
// "a.b[2].c" becomes ["a", "b", "2", "c"]. A non-numeric bracket token such
// as "name[x]" is kept as the literal key "x" rather than rejected; the
// normalization pass decides later whether a group of keys forms an array.
func splitPath(path string) []string {
	var segments []string
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				segments = append(segments, part)
				break
			}
			closing := strings.IndexByte(part[open:], ']')
			if closing < 0 {
				// Unterminated bracket: keep the raw text as a literal key.
				segments = append(segments, part)
				break
			}
			closing += open
			if open > 0 {
				segments = append(segments, part[:open])
			}
			if token := part[open+1 : closing]; token != "" {
				segments = append(segments, token)
			}
			part = part[closing+1:]
			if part == "" {
				break
			}
		}
	}
	return segments
}

// maxArrayIndex bounds how large an integer key may be before a map is no
// longer rewritten into a dense array, preventing absurd allocations from a
// single stray key like "999999999".
const maxArrayIndex = 10_000

// arrayIndex parses a key as a small non-negative integer array index.
func arrayIndex(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || n >= maxArrayIndex {
		return 0, false
	}
	// Reject forms like "01" or "+1" that Atoi accepts but no array producer
	// would emit.
	if strconv.Itoa(n) != key {
		return 0, false
	}
	return n, true
}

// normalize recursively rewrites any object whose keys are all small
// non-negative integers into a dense array indexed by those integers, with
// explicit nulls in the gaps.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			v[key] = normalize(child)
		}
		if len(v) == 0 {
			return v
		}
		maxIdx := -1
		for key := range v {
			idx, ok := arrayIndex(key)
			if !ok {
				return v
			}
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		arr := make([]any, maxIdx+1)
		for key, child := range v {
			idx, _ := arrayIndex(key)
			arr[idx] = child
		}
		return arr
	case []any:
		for i, child := range v {
			v[i] = normalize(child)
		}
		return v
	default:
		return value
	}
}

// coerce interprets accumulated text as a primitive: true/false/null,
// integers and decimals are recognized, anything else stays text.
func coerce(text string) any {
	switch text {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}
