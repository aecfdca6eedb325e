package parser

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

/*
Content container isolation

Three-layer strategy for finding the node that holds a document's real
content, used by the built-in readable-text fallback before it walks text:
  1. Semantic containers: <main>, <article>, [role="main"]
  2. Known documentation-framework selectors (docusaurus, sphinx, mkdocs, ...)
  3. Explicit chrome removal (nav/header/footer/aside + class/id keyword
     match) followed by text-density scoring over the remaining candidates

Falls back to the whole document if no layer finds a meaningful node.
*/

const (
	linkDensityThreshold = 0.5
	bodySpecificityBias  = 0.75
)

// knownContainerSelectors lists framework-specific content container
// selectors, tried in order after the semantic-container layer fails.
var knownContainerSelectors = []string{
	".content", ".doc-content", ".markdown-body", "#docs-content", ".rst-content",
	".theme-doc-markdown", ".md-content", ".docMainContainer", ".book-body",
	".markdown-section", ".md-main__inner", ".document", ".theme-default-content",
	".content__default", "#main", ".post-content", ".article-content", ".entry-content",
}

// isolateContentNode returns the node most likely to hold the document's
// real content, or nil if no layer produced a meaningful candidate.
func isolateContentNode(doc *html.Node) *html.Node {
	if node := extractSemanticContainer(doc); node != nil {
		return node
	}
	if node := extractKnownContainer(doc); node != nil {
		return node
	}
	return extractAfterChromeRemoval(doc)
}

func extractSemanticContainer(doc *html.Node) *html.Node {
	gq := goquery.NewDocumentFromNode(doc)
	for _, selector := range []string{"main", "article", "[role='main']"} {
		if sel := gq.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; isMeaningfulContent(node) {
				return node
			}
		}
	}
	return nil
}

func extractKnownContainer(doc *html.Node) *html.Node {
	gq := goquery.NewDocumentFromNode(doc)
	for _, selector := range knownContainerSelectors {
		if sel := gq.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; isMeaningfulContent(node) {
				return node
			}
		}
	}
	return nil
}

func extractAfterChromeRemoval(doc *html.Node) *html.Node {
	cleaned := deepCloneNode(doc)
	if cleaned == nil {
		return nil
	}
	removeChromeElements(cleaned)
	removeElementsWithChromeAttributes(cleaned)

	node := findBestContentContainer(cleaned)
	if node == nil || !isMeaningfulContent(node) {
		return nil
	}
	return node
}

var chromeElementNames = map[string]struct{}{"nav": {}, "header": {}, "footer": {}, "aside": {}}

var chromeAttributeKeywords = []string{
	"nav", "sidebar", "menu", "breadcrumb", "search", "footer", "header",
	"cookie", "consent", "version", "language", "theme", "edit", "github",
}

func deepCloneNode(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	cloned := &html.Node{Type: node.Type, DataAtom: node.DataAtom, Data: node.Data, Namespace: node.Namespace}
	if len(node.Attr) > 0 {
		cloned.Attr = make([]html.Attribute, len(node.Attr))
		copy(cloned.Attr, node.Attr)
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if clonedChild := deepCloneNode(c); clonedChild != nil {
			cloned.AppendChild(clonedChild)
		}
	}
	return cloned
}

func removeChromeElements(root *html.Node) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			if _, isChrome := chromeElementNames[n.Data]; isChrome {
				toRemove = append(toRemove, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func removeElementsWithChromeAttributes(root *html.Node) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && hasChromeAttribute(n) {
			toRemove = append(toRemove, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func hasChromeAttribute(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" && attr.Key != "id" {
			continue
		}
		lower := strings.ToLower(attr.Val)
		for _, keyword := range chromeAttributeKeywords {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
	}
	return false
}

func findBestContentContainer(doc *html.Node) *html.Node {
	candidates := collectCandidateNodes(doc)
	if len(candidates) == 0 {
		return nil
	}

	scores := make(map[*html.Node]float64, len(candidates))
	var bodyNode *html.Node
	var bodyScore float64
	for _, candidate := range candidates {
		score := calculateContentScore(candidate)
		scores[candidate] = score
		if candidate.Data == "body" {
			bodyNode = candidate
			bodyScore = score
		}
	}

	var bestNode *html.Node
	var bestScore float64
	for node, score := range scores {
		if score > bestScore {
			bestScore = score
			bestNode = node
		}
	}

	if bestNode == bodyNode && bodyNode != nil {
		for node, score := range scores {
			if node == bodyNode {
				continue
			}
			if score >= bodySpecificityBias*bodyScore && score > bestScore*0.9 {
				bestNode = node
				bestScore = score
				break
			}
		}
	}

	return bestNode
}

func collectCandidateNodes(root *html.Node) []*html.Node {
	var candidates []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "div", "section", "body":
				candidates = append(candidates, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	return candidates
}

type contentStats struct {
	nonWhitespace int
	paragraphs    int
	headings      int
	codeBlocks    int
	listItems     int
	textLength    int
	linkTextLen   int
	links         int
}

func walkContentStats(node *html.Node) contentStats {
	var stats contentStats
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		switch n.Type {
		case html.TextNode:
			stats.textLength += len(n.Data)
			for _, r := range n.Data {
				if !unicode.IsSpace(r) {
					stats.nonWhitespace++
				}
			}
		case html.ElementNode:
			switch n.Data {
			case "p":
				stats.paragraphs++
			case "h1", "h2", "h3", "h4", "h5", "h6":
				stats.headings++
			case "pre":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "code" {
						stats.codeBlocks++
						break
					}
				}
			case "code":
				if n.Parent == nil || n.Parent.Data != "pre" {
					stats.codeBlocks++
				}
			case "li":
				stats.listItems++
			case "a":
				stats.links++
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						stats.linkTextLen += len(strings.TrimSpace(c.Data))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return stats
}

func calculateContentScore(node *html.Node) float64 {
	stats := walkContentStats(node)

	score := float64(stats.nonWhitespace) / 50.0
	score += float64(stats.paragraphs) * 5.0
	score += float64(stats.headings) * 10.0
	score += float64(stats.codeBlocks) * 15.0
	score += float64(stats.listItems) * 2.0

	if stats.textLength > 0 {
		density := float64(stats.linkTextLen) / float64(stats.textLength)
		if density > linkDensityThreshold {
			score -= (density - linkDensityThreshold) * score
		}
	}
	return score
}

// isMeaningfulContent rejects nodes that are little more than navigation:
// it requires a minimum amount of non-link text, plus either a paragraph/
// code block or a heading with some body text.
func isMeaningfulContent(node *html.Node) bool {
	if node == nil {
		return false
	}
	stats := walkContentStats(node)

	const minNonWhitespace = 50
	const maxLinkDensity = 0.8

	if stats.nonWhitespace < minNonWhitespace {
		return false
	}
	if stats.textLength > 0 {
		density := float64(stats.linkTextLen) / float64(stats.textLength)
		if density > maxLinkDensity && stats.links > 2 {
			return false
		}
	}

	hasContent := stats.paragraphs >= 1 || stats.codeBlocks >= 1
	hasHeadingsWithText := stats.headings > 0 && stats.nonWhitespace >= 20
	return hasContent || hasHeadingsWithText
}
