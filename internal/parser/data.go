package parser

import "time"

// Document is the normalized output of a parse: everything downstream
// stages need, with no behavior attached.
type Document struct {
	URL           string
	CanonicalURL  string
	HTMLTitle     string
	MetaTags      map[string]string
	JSONLDBlocks  []map[string]any
	Title         string
	DatePublished *time.Time
	AuthorNames   []string
	Text          string
}

// headMetadata holds the <head> fields the extractor's priority chains
// read: the <title> text, the meta tags and the canonical link href; kept
// unexported since only this package ever builds a Document.
type headMetadata struct {
	htmlTitle     string
	metaTags      map[string]string
	canonicalHref string
}
