// Package pathutil resolves dotted/bracketed paths against nested JSON-like
// data and substitutes {path} placeholders in strings and containers.
package pathutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasttemplate"
)

// splitPath splits a path on dots that are not inside brackets, e.g.
// "a.b[0].c" -> ["a", "b[0]", "c"].
func splitPath(path string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range path {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				parts = append(parts, path[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, path[start:])
}

// segment matches either a bare key or a bracketed integer index.
var segment = regexp.MustCompile(`([^\[\]]+)|\[(\d+)\]`)

// Get walks path left-to-right over root and returns the resolved value and
// whether it was present. Attempting to key into a non-mapping, index into a
// non-sequence, or an out-of-range index yields absent. Empty path returns
// root unchanged.
func Get(root interface{}, path string) (interface{}, bool) {
	if path == "" {
		return root, true
	}

	// Fast path: plain dotted/array-index paths (no literal brackets) can
	// go straight through gjson, which already understands "a.b.0.c".
	if !strings.ContainsAny(path, "[]") {
		return gjsonGet(root, path)
	}

	data := root
	for _, part := range splitPath(path) {
		matches := segment.FindAllStringSubmatch(part, -1)
		if matches == nil {
			return nil, false
		}
		for _, m := range matches {
			key, idx := m[1], m[2]
			switch {
			case key != "":
				mp, ok := asMap(data)
				if !ok {
					return nil, false
				}
				data, ok = mp[key]
				if !ok {
					return nil, false
				}
			case idx != "":
				seq, ok := asSlice(data)
				if !ok {
					return nil, false
				}
				n, err := strconv.Atoi(idx)
				if err != nil || n < 0 || n >= len(seq) {
					return nil, false
				}
				data = seq[n]
			}
		}
	}
	return data, true
}

func gjsonGet(root interface{}, path string) (interface{}, bool) {
	b, err := json.Marshal(root)
	if err != nil {
		return nil, false
	}
	// gjson uses bare numeric segments for array indices; our dotted-only
	// fast path already matches that convention.
	res := gjson.GetBytes(b, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// Render recursively substitutes {path} placeholders found in strings within
// v, resolving each path against context via Get. A placeholder whose path
// does not resolve is left untouched (literal, braces and all). Maps and
// slices are walked recursively with their structure preserved; other
// scalars pass through unchanged. Never panics: a string that fasttemplate
// cannot parse (e.g. one with an unclosed brace) is returned unchanged.
func Render(v interface{}, context interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return renderString(t, context)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Render(val, context)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Render(val, context)
		}
		return out
	default:
		return v
	}
}

func renderString(s string, context interface{}) (result string) {
	defer func() {
		if recover() != nil {
			result = s
		}
	}()

	t, err := fasttemplate.NewTemplate(s, "{", "}")
	if err != nil {
		return s
	}

	var sb strings.Builder
	_, err = t.ExecuteFunc(&sb, func(w io.Writer, tag string) (int, error) {
		path := strings.TrimSpace(tag)
		val, ok := Get(context, path)
		if !ok {
			return io.WriteString(w, "{"+tag+"}")
		}
		return io.WriteString(w, stringify(val))
	})
	if err != nil {
		return s
	}
	return sb.String()
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "<nil>"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
