// Package extract turns gazette detail pages into structured fields. It
// holds the label lookup, the regex heuristics, the doc-type rules and the
// object-text cascade. Nothing in here performs I/O.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)

// normalize puts text in NFC form and replaces non-breaking spaces so the
// ASCII \s class in the patterns below behaves like the site expects.
func normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2007', '\v':
			return ' '
		}
		return r
	}, s)
}

// collapse squeezes every whitespace run into a single space.
func collapse(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}

// strippedStrings returns the non-empty, trimmed text nodes under n in
// document order.
func strippedStrings(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, normalize(s))
			}
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// nodeText joins the stripped strings of n with sep.
func nodeText(n *html.Node, sep string) string {
	return strings.Join(strippedStrings(n), sep)
}

// elementsInOrder lists every element node under root in pre-order.
func elementsInOrder(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// truncateRunes keeps at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// missing reports whether a field still holds a not-found marker.
func missing(s string) bool {
	return s == "" || s == "-"
}

// firstSubmatch returns capture group 1 of the first match of re in s.
func firstSubmatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
