// ABOUTME: XHTML to plain text conversion and word counting
// ABOUTME: Uses golang.org/x/net/html so malformed chapter markup still yields text

package epub

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end the current paragraph.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Dd: true, atom.Dt: true,
	atom.Blockquote: true, atom.Pre: true, atom.Section: true, atom.Article: true,
	atom.Tr: true, atom.Table: true, atom.Figcaption: true, atom.Aside: true,
	atom.Header: true, atom.Footer: true,
}

// skippedElements contribute no text.
var skippedElements = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Svg: true, atom.Math: true,
}

type document struct {
	text    string
	heading string
}

type textBuilder struct {
	paragraphs []string
	current    strings.Builder
}

func (tb *textBuilder) flush() {
	if p := collapseSpace(tb.current.String()); p != "" {
		tb.paragraphs = append(tb.paragraphs, p)
	}
	tb.current.Reset()
}

// extractText renders an XHTML document as paragraphs separated by blank lines
// and reports the text of its first h1-h3 heading.
func extractText(raw []byte) document {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return document{}
	}

	var doc document
	tb := &textBuilder{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			tb.current.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
			if doc.heading == "" && (n.DataAtom == atom.H1 || n.DataAtom == atom.H2 || n.DataAtom == atom.H3) {
				doc.heading = collapseSpace(nodeText(n))
			}
			if blockElements[n.DataAtom] {
				tb.flush()
				defer tb.flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	tb.flush()

	doc.text = strings.Join(tb.paragraphs, "\n\n")
	return doc
}

// nodeText concatenates all text below n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

type navLink struct {
	href  string
	label string
}

// navLinks returns the links of an EPUB 3 navigation document's toc nav, or of
// its first nav element when none is marked as the toc.
func navLinks(raw []byte) []navLink {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	var navs []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			navs = append(navs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if len(navs) == 0 {
		return nil
	}

	nav := navs[0]
	for _, n := range navs {
		if attr(n, "epub:type") == "toc" {
			nav = n
			break
		}
	}

	var links []navLink
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			links = append(links, navLink{href: attr(n, "href"), label: nodeText(n)})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(nav)
	return links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if name == key {
			return a.Val
		}
	}
	return ""
}

// CountWords counts words the way readers of mixed-script books expect: each
// CJK character is one word, and every other run of letters or digits is one word.
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' && inWord:
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return count
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
