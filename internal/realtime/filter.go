package realtime

import (
	"fmt"
	"strings"
)

// Filter is an equality predicate on one key column. The zero value
// matches every row.
type Filter struct {
	Column string
	Value  string
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) Matches(keys map[string]string) bool {
	if f.IsZero() {
		return true
	}
	v, ok := keys[f.Column]
	return ok && v == f.Value
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// ParseFilter parses the wire form "column=eq.value". An empty string
// yields the zero Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok {
		return Filter{}, fmt.Errorf("realtime: filter %q: missing '='", s)
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("realtime: filter %q: only eq is supported", s)
	}
	if !validColumn(col) {
		return Filter{}, fmt.Errorf("realtime: filter %q: bad column", s)
	}
	if val == "" {
		return Filter{}, fmt.Errorf("realtime: filter %q: empty value", s)
	}
	return Filter{Column: col, Value: val}, nil
}

func validColumn(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
