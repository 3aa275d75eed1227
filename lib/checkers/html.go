package checkers

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	priceNumber = regexp.MustCompile(`\d+(,\d+)*(\.\d+)?`)
)

// SelectText returns the compacted text under the first node matching xpath.
func SelectText(n *html.Node, xpath string) string {
	node := htmlquery.FindOne(n, xpath)
	return digForText(node)
}

func Title(doc *html.Node) string {
	return SelectText(doc, "//title")
}

// ExtractPrice reads the first number out of text such as "$1,299.99 CAD".
func ExtractPrice(text string) (float64, error) {
	match := priceNumber.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("no price in %q", text)
	}
	return strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func digForText(n *html.Node) string {
	if n == nil {
		return ""
	}
	buf := new(bytes.Buffer)
	dig(n, buf)
	return compactWhitespace(buf.String())
}

func dig(n *html.Node, buf *bytes.Buffer) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dig(c, buf)
	}
}

func compactWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ")
	return s
}
