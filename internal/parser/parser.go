package parser

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

/*
Parser

Converts a fetched document's raw bytes into a normalized Document: title,
published date, author names, canonical URL, meta tags, JSON-LD blocks,
and best-effort readable text.

The parser is pure and deterministic — byte-identical input yields
byte-identical output. It never returns an error: a malformed or
unparseable document yields a Document with empty/zero fields rather than
failing the stage, matching the extractor's evidence-coverage contract
that simply finds nothing to cite.
*/

var dateMetaKeys = []string{"article:published_time", "pubdate", "publish-date", "dc.date", "date"}
var authorMetaKeys = []string{"author", "article:author", "og:article:author"}
var titleMetaKeys = []string{"og:title", "twitter:title"}

var authorSplitPattern = regexp.MustCompile(`,|\||\band\b`)
var charsetPattern = regexp.MustCompile(`(?i)charset=([a-zA-Z0-9._-]+)`)

// Parser parses fetched bodies into Documents, with a swappable readable
// text extractor — the built-in fallback by default.
type Parser struct {
	readableTextExtractor ReadableTextExtractor
	maxTextChars          int
}

// New builds a Parser. A nil extractor uses only the built-in DOM-walk
// fallback.
func New(extractor ReadableTextExtractor, maxTextChars int) *Parser {
	return &Parser{readableTextExtractor: extractor, maxTextChars: maxTextChars}
}

// Parse decodes body using contentType's charset hint (falling back to
// UTF-8, then Latin-1) and extracts a normalized Document.
func (p *Parser) Parse(body []byte, contentType, finalURL string) Document {
	htmlText := decodeBody(body, contentType)
	meta := extractStructuredMetadata(htmlText, finalURL)

	text := extractReadableText(htmlText, p.readableTextExtractor)
	text = truncateWithEllipsis(text, p.maxTextChars)

	canonicalURL := meta.canonicalURL
	if canonicalURL == "" {
		canonicalURL = finalURL
	}

	return Document{
		URL:           finalURL,
		CanonicalURL:  canonicalURL,
		HTMLTitle:     meta.htmlTitle,
		MetaTags:      meta.metaTags,
		JSONLDBlocks:  meta.jsonLDBlocks,
		Title:         chooseTitle(meta),
		DatePublished: choosePublishedAt(meta),
		AuthorNames:   collectAuthorNames(meta),
		Text:          text,
	}
}

// decodeBody respects an explicit charset in contentType, then tries
// UTF-8, then falls back to a byte-for-byte Latin-1 decode, which always
// succeeds since every byte maps to a Unicode code point of the same
// ordinal.
func decodeBody(body []byte, contentType string) string {
	if match := charsetPattern.FindStringSubmatch(contentType); match != nil {
		charset := strings.ToLower(match[1])
		if charset == "utf-8" || charset == "utf8" {
			if utf8.Valid(body) {
				return string(body)
			}
		}
		if charset == "iso-8859-1" || charset == "latin1" || charset == "windows-1252" {
			return decodeLatin1(body)
		}
	}

	if utf8.Valid(body) {
		return string(body)
	}
	return decodeLatin1(body)
}

func decodeLatin1(body []byte) string {
	runes := make([]rune, len(body))
	for i, b := range body {
		runes[i] = rune(b)
	}
	return string(runes)
}

// chooseTitle picks title by priority: JSON-LD headline/name, then
// meta og:title/twitter:title, then the HTML <title> element.
func chooseTitle(meta structuredMetadata) string {
	if meta.jsonLDTitle != "" {
		return strings.Join(strings.Fields(meta.jsonLDTitle), " ")
	}
	for _, key := range titleMetaKeys {
		if value := meta.metaTags[key]; value != "" {
			return strings.Join(strings.Fields(value), " ")
		}
	}
	return meta.htmlTitle
}

// choosePublishedAt picks the publication datetime by priority: JSON-LD
// datePublished/dateCreated, then meta keys in dateMetaKeys order, each
// parsed as best-effort ISO-8601 with Z treated as +00:00.
func choosePublishedAt(meta structuredMetadata) *time.Time {
	if parsed := parseISODatetime(meta.jsonLDDate); parsed != nil {
		return parsed
	}
	for _, key := range dateMetaKeys {
		if parsed := parseISODatetime(meta.metaTags[key]); parsed != nil {
			return parsed
		}
	}
	return nil
}

func parseISODatetime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	normalized := strings.Replace(value, "Z", "+00:00", 1)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, normalized); err == nil {
			return &parsed
		}
	}
	return nil
}

// collectAuthorNames merges author hints from JSON-LD and meta tags,
// splitting compound meta values on commas, pipes, and the literal word
// "and", preserving first-seen order and de-duplicating.
func collectAuthorNames(meta structuredMetadata) []string {
	var names []string
	add := func(candidate string) {
		for _, part := range authorSplitPattern.Split(candidate, -1) {
			normalized := strings.Join(strings.Fields(part), " ")
			if normalized == "" {
				continue
			}
			duplicate := false
			for _, existing := range names {
				if existing == normalized {
					duplicate = true
					break
				}
			}
			if !duplicate {
				names = append(names, normalized)
			}
		}
	}

	for _, name := range meta.jsonLDAuthors {
		add(name)
	}
	for _, key := range authorMetaKeys {
		if value := meta.metaTags[key]; value != "" {
			add(value)
		}
	}
	return names
}
