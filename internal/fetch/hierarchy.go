package fetch

import (
	"net/url"
	"slices"
	"strings"
)

// Hierarchy is the path tree of a site, keyed by path segment.
type Hierarchy map[string]Hierarchy

// BuildHierarchy arranges urls into a path tree. URLs on other hosts than
// base are skipped; the root path is stored as "home".
func BuildHierarchy(urls []string, base string) Hierarchy {
	root := Hierarchy{}

	var baseHost string
	if parsed, err := url.Parse(base); err == nil {
		baseHost = parsed.Host
	}

	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if parsed.Host != "" && parsed.Host != baseHost {
			continue
		}

		path := strings.Trim(parsed.Path, "/")
		if path == "" {
			path = "home"
		}

		level := root
		for _, segment := range strings.Split(path, "/") {
			next, ok := level[segment]
			if !ok {
				next = Hierarchy{}
				level[segment] = next
			}
			level = next
		}
	}

	return root
}

// String renders the tree with one "/segment" per line, two spaces per level.
func (h Hierarchy) String() string {
	var b strings.Builder
	h.write(&b, 0)
	return b.String()
}

func (h Hierarchy) write(b *strings.Builder, depth int) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("/")
		b.WriteString(k)
		b.WriteString("\n")
		h[k].write(b, depth+1)
	}
}
