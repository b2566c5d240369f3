package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Cutset is the whitespace trimmed off text nodes before they are compared or returned.
const Cutset = " \t\r\n"

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// TextNodes calls fn on every text node under node in document order until fn returns false.
func TextNodes(node *html.Node, fn func(text string) bool) bool {
	if node == nil {
		return true
	}
	if node.Type == html.TextNode {
		return fn(node.Data)
	}
	// script and style bodies are not page text
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return true
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !TextNodes(child, fn) {
			return false
		}
	}
	return true
}

// StrippedStrings returns every text node under the selection, trimmed, skipping blank ones.
func StrippedStrings(sel *goquery.Selection) []string {
	var out []string
	for _, n := range sel.Nodes {
		TextNodes(n, func(text string) bool {
			text = strings.Trim(text, Cutset)
			if text != "" {
				out = append(out, text)
			}
			return true
		})
	}
	return out
}

// FirstText returns the first non-blank text node under node, trimmed.
func FirstText(node *html.Node) (string, bool) {
	var found string
	ok := false
	TextNodes(node, func(text string) bool {
		text = strings.Trim(text, Cutset)
		if text == "" {
			return true
		}
		found = text
		ok = true
		return false
	})
	return found, ok
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		switch {
		case unicode.IsSpace(c):
			newStr.WriteRune(' ')
		case unicode.IsPrint(c):
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Normalize turns any whitespace into spaces, removes other non printable characters
// and collapses runs of spaces.
func Normalize(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, Cutset)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// ResolveAttr resolves a url-valued attribute of the first node in sel against base.
func ResolveAttr(base *url.URL, sel *goquery.Selection, attr string) (*url.URL, bool) {
	value, exists := sel.First().Attr(attr)
	if !exists {
		return nil, false
	}
	ref, err := url.Parse(strings.Trim(value, Cutset))
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(ref), true
}
