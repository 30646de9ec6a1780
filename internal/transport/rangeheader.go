package transport

import (
	"strconv"
	"strings"
)

// validRange reports whether v is a syntactically valid Range header value,
// e.g. "bytes=0-499", "bytes=500-", "bytes=-200" or a comma separated list.
func validRange(v string) bool {
	unit, spec, ok := strings.Cut(strings.TrimSpace(v), "=")
	if !ok || strings.TrimSpace(unit) == "" || strings.ContainsAny(unit, " \t,") {
		return false
	}
	parts := strings.Split(spec, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		start, end, ok := strings.Cut(part, "-")
		if !ok {
			return false
		}
		start = strings.TrimSpace(start)
		end = strings.TrimSpace(end)
		switch {
		case start == "" && end == "":
			return false
		case start == "":
			if !digits(end) {
				return false
			}
		case end == "":
			if !digits(start) {
				return false
			}
		default:
			if !digits(start) || !digits(end) {
				return false
			}
			a, errA := strconv.ParseInt(start, 10, 64)
			b, errB := strconv.ParseInt(end, 10, 64)
			if errA != nil || errB != nil || a > b {
				return false
			}
		}
	}
	return true
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
