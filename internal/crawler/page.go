package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector matches elements whose text never counts as page content.
const noiseSelector = "script, style, noscript, template, svg"

// inlineElements run on with their neighbours. Every other element boundary
// separates words.
var inlineElements = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "bdi": {}, "bdo": {}, "cite": {}, "code": {},
	"data": {}, "dfn": {}, "em": {}, "font": {}, "i": {}, "kbd": {}, "mark": {},
	"q": {}, "s": {}, "samp": {}, "small": {}, "span": {}, "strong": {}, "sub": {},
	"sup": {}, "time": {}, "u": {}, "var": {},
}

// ExtractContent returns the title and whitespace-normalized body text of an
// HTML document. The title falls back to the first h1 when <title> is empty.
func ExtractContent(markup []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	title := collapseSpace(doc.Find("title").First().Text())
	if title == "" {
		title = TextOf(doc.Find("h1").First())
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return title, TextOf(body), nil
}

// TextOf returns the whitespace-normalized text under sel. Unlike
// Selection.Text, block-level element boundaries separate words, so
// <li>Docs</li><li>About</li> reads "Docs About".
func TextOf(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		_, inline := inlineElements[n.Data]
		block := n.Type == html.ElementNode && !inline
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return collapseSpace(b.String())
}

// WordCount counts whitespace-separated tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
