package protocol

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// CanonicalKey serializes a filter so that equivalent filters produce the
// same key regardless of field or element order.
func CanonicalKey(f Filter) string {
	var b strings.Builder

	kinds := append([]int(nil), f.Kinds...)
	sort.Ints(kinds)
	b.WriteString("kinds=")
	for i, k := range kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(k))
	}

	writeSorted(&b, "authors", f.Authors)
	writeSorted(&b, "ids", f.IDs)

	tagNames := make([]string, 0, len(f.Tags))
	for name := range f.Tags {
		tagNames = append(tagNames, name)
	}
	sort.Strings(tagNames)
	for _, name := range tagNames {
		writeSorted(&b, "#"+strconv.Quote(name), f.Tags[name])
	}

	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(f.Limit))
	if f.Since != nil {
		b.WriteString("|since=")
		b.WriteString(strconv.FormatInt(int64(*f.Since), 10))
	}
	if f.Until != nil {
		b.WriteString("|until=")
		b.WriteString(strconv.FormatInt(int64(*f.Until), 10))
	}
	if f.Search != "" {
		b.WriteString("|search=")
		b.WriteString(strconv.Quote(f.Search))
	}
	return b.String()
}

// writeSorted appends values as a sorted JSON array so separators inside a
// value cannot collide with element boundaries.
func writeSorted(b *strings.Builder, name string, values []string) {
	if len(values) == 0 {
		return
	}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	encoded, _ := json.Marshal(sorted)
	b.WriteByte('|')
	b.WriteString(name)
	b.WriteByte('=')
	b.Write(encoded)
}
