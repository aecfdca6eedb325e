package parser

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
)

// ReadableTextExtractor converts raw HTML into plain readable text. An
// empty return signals the extractor could not produce usable text; the
// caller falls back to the built-in DOM-walk extractor.
type ReadableTextExtractor interface {
	Extract(htmlText string) string
}

// MarkdownReadableExtractor is the "external readability" quality booster:
// it converts the document to Markdown and strips Markdown syntax back
// down to plain text, which tracks headings/paragraphs more faithfully
// than a bare tag-stripping pass.
type MarkdownReadableExtractor struct{}

func (MarkdownReadableExtractor) Extract(htmlText string) string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}

	conv := converter.NewConverter(
		converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()),
	)
	markdown, err := conv.ConvertNode(doc)
	if err != nil {
		return ""
	}

	return normalizeWhitespace(stripMarkdownSyntax(string(markdown)))
}

var markdownSyntaxPattern = regexp.MustCompile("(?m)^#{1,6}\\s+|^\\s*[-*+]\\s+|^>\\s+|\\*\\*|__|`{1,3}|\\[([^\\]]*)\\]\\([^)]*\\)")

func stripMarkdownSyntax(markdown string) string {
	return markdownSyntaxPattern.ReplaceAllString(markdown, "$1")
}

// fallbackTextExtractor isolates the document's real content container
// (stripping nav/header/footer/aside chrome first) and walks it directly,
// skipping script/style/noscript/template content, inserting paragraph
// breaks around block-level tags. Used when no external readability
// library is wired, or when it fails to produce text.
type fallbackTextExtractor struct{}

var skipTags = map[string]struct{}{"script": {}, "style": {}, "noscript": {}, "template": {}}
var blockTags = map[string]struct{}{
	"p": {}, "br": {}, "li": {}, "div": {}, "section": {}, "article": {},
	"h1": {}, "h2": {}, "h3": {},
}

func (fallbackTextExtractor) Extract(htmlText string) string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}

	root := doc
	if isolated := isolateContentNode(doc); isolated != nil {
		root = isolated
	}

	var chunks []string
	var walk func(n *html.Node, inHead bool, skipDepth int)
	walk = func(n *html.Node, inHead bool, skipDepth int) {
		switch n.Type {
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if tag == "head" {
				inHead = true
			}
			nextSkipDepth := skipDepth
			if _, skip := skipTags[tag]; skip {
				nextSkipDepth++
			}
			if _, block := blockTags[tag]; block {
				chunks = append(chunks, "\n")
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, inHead, nextSkipDepth)
			}
			return
		case html.TextNode:
			if inHead || skipDepth > 0 {
				return
			}
			if strings.TrimSpace(n.Data) != "" {
				chunks = append(chunks, n.Data, " ")
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inHead, skipDepth)
		}
	}
	walk(root, false, 0)

	return normalizeWhitespace(strings.Join(chunks, ""))
}

// normalizeWhitespace collapses intra-line whitespace while preserving
// paragraph breaks as blank lines.
func normalizeWhitespace(value string) string {
	var lines []string
	for _, line := range strings.Split(value, "\n") {
		compact := strings.Join(strings.Fields(line), " ")
		if compact != "" {
			lines = append(lines, compact)
		}
	}
	return strings.Join(lines, "\n\n")
}

// truncateWithEllipsis truncates text on a word boundary and appends an
// ellipsis, leaving text untouched if it already fits.
func truncateWithEllipsis(text string, maxChars int) string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return text
	}
	runes := []rune(text)
	prefix := string(runes[:maxChars])
	if idx := strings.LastIndex(prefix, " "); idx > 0 && !strings.HasSuffix(prefix, " ") {
		prefix = prefix[:idx]
	}
	return strings.TrimRight(prefix, " ") + "…"
}

func extractReadableText(htmlText string, extractor ReadableTextExtractor) string {
	if extractor != nil {
		if text := extractor.Extract(htmlText); text != "" {
			return text
		}
	}
	return fallbackTextExtractor{}.Extract(htmlText)
}
