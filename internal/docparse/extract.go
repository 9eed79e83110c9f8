package docparse

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const (
	maxContentChars    = 50000
	maxEndpointEntries = 50
	maxCodeSnippet     = 200
)

var endpointPathHints = []string{"/api/", "/rest/", "/v1/", "/v2/", "/v3/"}

var tableRowHints = []string{"get", "post", "put", "delete", "/api/", "/rest/"}

var codeBlockHints = []string{"/api/", "/rest/", "curl", "http"}

// extractTitle returns the text of the first <title> element, or "Unknown API".
func extractTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(nodeText(n))
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	if title == "" {
		return "Unknown API"
	}
	return title
}

// extractContent flattens the document to plain text, skipping script and
// style elements, appends any endpoint listings found in navigation links,
// tables and code blocks, and caps the result at maxContentChars.
func extractContent(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.TrimSpace(sb.String())
	if listings := extractEndpointListings(doc); listings != "" {
		text = text + "\n\nENDPOINT LISTINGS:\n" + listings
	}
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}
	return text
}

// extractEndpointListings pulls endpoint hints out of navigation links,
// table rows and code blocks, the places API docs usually enumerate their
// surface.
func extractEndpointListings(doc *html.Node) string {
	var entries []string
	add := func(entry string) {
		if len(entries) < maxEndpointEntries {
			entries = append(entries, entry)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				href := attrValue(n, "href")
				text := strings.TrimSpace(nodeText(n))
				if containsAnyFold(href, endpointPathHints) && len(text) > 2 {
					add(fmt.Sprintf("Endpoint: %s -> %s", text, href))
				}
			case "tr":
				cells := childCells(n)
				if len(cells) >= 2 {
					row := strings.Join(cells, " | ")
					if containsAnyFold(row, tableRowHints) {
						add("Table Row: " + row)
					}
				}
			case "code", "pre":
				code := strings.TrimSpace(nodeText(n))
				if containsAnyFold(code, codeBlockHints) {
					if len(code) > maxCodeSnippet {
						code = code[:maxCodeSnippet]
					}
					add("Code Example: " + code + "...")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(entries, "\n")
}

func childCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func containsAnyFold(s string, hints []string) bool {
	lower := strings.ToLower(s)
	for _, hint := range hints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
