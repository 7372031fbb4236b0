package element

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTags turns a comma-separated string or a list of strings into a
// sorted, de-duplicated, NFC-normalized tag set. Nil yields nil.
func NormalizeTags(v any) ([]string, error) {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("tag %d is %T, want string", i, item)}
			}
			raw = append(raw, s)
		}
	default:
		return nil, &ValidationError{Field: "tags", Message: fmt.Sprintf("unsupported tags value %T", v)}
	}
	return MergeTags(nil, raw), nil
}

// MergeTags returns the sorted union of two tag lists.
func MergeTags(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	var out []string
	for _, list := range [][]string{existing, add} {
		for _, tag := range list {
			tag = norm.NFC.String(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}
