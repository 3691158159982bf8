package graph

import (
	"strconv"
	"strings"
)

// ParseWidth normalizes a raw width attribute to meters. Accepts numbers
// and numeric strings; anything else yields nil rather than an error.
func ParseWidth(v any) *float64 {
	switch w := v.(type) {
	case float64:
		return &w
	case int:
		f := float64(w)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(w), 64); err == nil {
			return &f
		}
	}
	return nil
}

// ParseMaxSpeeds normalizes a raw maxspeed attribute to a list of speed
// limits. A single number becomes a one-element list; strings may carry
// multiple '|'-separated values. Non-numeric tokens are dropped and
// unparseable input yields nil.
func ParseMaxSpeeds(v any) []int {
	return parseIntList(v)
}

// ParseLanes normalizes a raw lanes attribute the same way ParseMaxSpeeds
// does for speed limits.
func ParseLanes(v any) []int {
	return parseIntList(v)
}

func parseIntList(v any) []int {
	switch n := v.(type) {
	case int:
		return []int{n}
	case float64:
		return []int{int(n)}
	case string:
		var out []int
		for _, tok := range strings.Split(n, "|") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			i, err := strconv.Atoi(tok)
			if err != nil {
				continue
			}
			out = append(out, i)
		}
		return out
	}
	return nil
}

// toInt64 coerces a raw node id to int64. JSON decoding hands ids over as
// float64; string ids must be plain integers.
func toInt64(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		return int64(id), true
	case int64:
		return id, true
	case int:
		return int64(id), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		return s == "true" || s == "yes" || s == "1"
	}
	return false
}
