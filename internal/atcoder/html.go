package atcoder

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const codeElementID = "submission-code"

// ExtractCode returns the text of <pre id="submission-code"> in an HTML
// document, or ErrCodeNotFound.
func ExtractCode(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("atcoder: parse html: %w", err)
	}

	pre := findCodeElement(doc)
	if pre == nil {
		return "", ErrCodeNotFound
	}

	var b strings.Builder
	collectText(pre, &b)
	return b.String(), nil
}

func findCodeElement(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Pre && attr(n, "id") == codeElementID {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findCodeElement(child); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}
