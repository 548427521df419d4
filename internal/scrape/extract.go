package scrape

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Head:     true,
}

// blocks separate their text from neighbours; inline elements do not.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Main: true,
	atom.Dt: true, atom.Dd: true, atom.Blockquote: true, atom.Pre: true, atom.Hr: true,
}

// ExtractText parses an HTML document and returns its title and the visible
// text of its body, each with whitespace collapsed to single spaces.
func ExtractText(r io.Reader) (title, body string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var titleNode, bodyNode *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if titleNode == nil {
					titleNode = n
				}
			case atom.Body:
				if bodyNode == nil {
					bodyNode = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if titleNode != nil {
		var sb strings.Builder
		for c := titleNode.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		title = collapse(sb.String())
	}

	if bodyNode != nil {
		var sb strings.Builder
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && skipped[n.DataAtom] {
				return
			}
			if n.Type == html.TextNode {
				sb.WriteString(n.Data)
			}
			block := n.Type == html.ElementNode && blocks[n.DataAtom]
			if block {
				sb.WriteByte(' ')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				sb.WriteByte(' ')
			}
		}
		walk(bodyNode)
		body = collapse(sb.String())
	}

	return title, body, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
