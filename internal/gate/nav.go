package gate

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HideGuardedNav copies the HTML document from r to w without the navigation
// entries that lead into guarded sections. An entry is an <a> whose trimmed
// text equals one of labels or whose href contains one of prefixes; the
// enclosing <li> is removed when there is one, otherwise the link itself.
func HideGuardedNav(w io.Writer, r io.Reader, labels, prefixes []string) error {
	doc, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A && isGuardedLink(n, labels, prefixes) {
			target := n
			if p := n.Parent; p != nil && p.DataAtom == atom.Li {
				target = p
			}
			doomed = append(doomed, target)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func isGuardedLink(a *html.Node, labels, prefixes []string) bool {
	text := strings.TrimSpace(textContent(a))
	for _, l := range labels {
		if l != "" && text == l {
			return true
		}
	}
	for _, attr := range a.Attr {
		if attr.Namespace != "" || attr.Key != "href" {
			continue
		}
		for _, p := range prefixes {
			if p != "" && strings.Contains(attr.Val, p) {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
