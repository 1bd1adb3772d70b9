// Package sanitize strips presentation and navigation noise from fetched HTML
// before it is handed to a language model.
package sanitize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var removedElements = strings.Join([]string{
	"script", "style", "meta", "link", "noscript",
	"header", "footer", "nav", "aside",
}, ", ")

var removedAttributes = map[string]struct{}{
	"class":    {},
	"id":       {},
	"style":    {},
	"role":     {},
	"tabindex": {},
}

// Sanitize removes non-content elements, comments and styling attributes from
// raw HTML. Running it on its own output is a no-op. Input that cannot be
// parsed at all yields an empty string.
func Sanitize(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	doc.Find(removedElements).Remove()

	for _, root := range doc.Nodes {
		clean(root)
	}

	out, err := doc.Html()
	if err != nil {
		return ""
	}
	return out
}

func clean(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			clean(child)
		}
		child = next
	}

	if n.Type == html.ElementNode {
		n.Attr = keepAttributes(n.Data, n.Attr)
	}
}

func keepAttributes(tag string, attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return attrs
	}

	kept := attrs[:0]
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if tag == "img" {
			if key == "src" || key == "alt" {
				kept = append(kept, attr)
			}
			continue
		}
		if dropAttribute(key) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func dropAttribute(key string) bool {
	if _, ok := removedAttributes[key]; ok {
		return true
	}
	return strings.HasPrefix(key, "aria-") ||
		strings.HasPrefix(key, "data-") ||
		strings.HasPrefix(key, "on")
}
