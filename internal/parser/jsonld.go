package parser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var articleTypes = map[string]struct{}{
	"article": {}, "newsarticle": {}, "blogposting": {}, "scholarlyarticle": {}, "report": {},
}

// structuredMetadata is the union of head metadata and the JSON-LD block
// chosen as most relevant, before priority resolution happens in parser.go.
type structuredMetadata struct {
	htmlTitle        string
	metaTags         map[string]string
	canonicalURL     string
	jsonLDBlocks     []map[string]any
	jsonLDTitle      string
	jsonLDDate       string
	jsonLDAuthors    []string
}

// extractStructuredMetadata parses head metadata (title, meta tags,
// canonical link) and every JSON-LD script block out of htmlText, picking
// the most article-like block as the authoritative JSON-LD source.
func extractStructuredMetadata(htmlText, pageURL string) structuredMetadata {
	head := extractHeadMetadata(htmlText)

	canonical := head.canonicalHref
	if canonical != "" && pageURL != "" {
		if resolved, err := resolveAgainst(pageURL, canonical); err == nil {
			canonical = resolved
		}
	}

	blocks := extractJSONLDBlocks(htmlText)
	best := pickBestJSONLDBlock(blocks)

	meta := structuredMetadata{
		htmlTitle:    head.htmlTitle,
		metaTags:     head.metaTags,
		canonicalURL: canonical,
		jsonLDBlocks: blocks,
	}
	if best == nil {
		return meta
	}

	if headline, ok := stringField(best, "headline"); ok {
		meta.jsonLDTitle = headline
	} else if name, ok := stringField(best, "name"); ok {
		meta.jsonLDTitle = name
	}

	if date, ok := stringField(best, "datePublished"); ok {
		meta.jsonLDDate = date
	} else if date, ok := stringField(best, "dateCreated"); ok {
		meta.jsonLDDate = date
	}

	meta.jsonLDAuthors = extractAuthorNames(best["author"])

	return meta
}

// extractHeadMetadata walks the document for <title>, <meta>, and the
// canonical <link>, first-seen-wins per meta key.
func extractHeadMetadata(htmlText string) headMetadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return headMetadata{metaTags: map[string]string{}}
	}

	metaTags := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}
		if _, exists := metaTags[key]; !exists {
			metaTags[key] = content
		}
	})

	canonicalHref := ""
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if hasRelToken(rel, "canonical") && href != "" {
			canonicalHref = href
			return false
		}
		return true
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.Join(strings.Fields(title), " ")

	return headMetadata{
		htmlTitle:     title,
		metaTags:      metaTags,
		canonicalHref: canonicalHref,
	}
}

func hasRelToken(rel, token string) bool {
	for _, part := range strings.Fields(rel) {
		if part == token {
			return true
		}
	}
	return false
}

var jsonLDScriptPattern = regexp.MustCompile(`(?is)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// extractJSONLDBlocks finds every application/ld+json script tag, decodes
// each as JSON, and flattens @graph containers into individual objects.
// Malformed blocks are skipped silently.
func extractJSONLDBlocks(htmlText string) []map[string]any {
	var blocks []map[string]any
	for _, match := range jsonLDScriptPattern.FindAllStringSubmatch(htmlText, -1) {
		raw := strings.TrimSpace(unescapeHTMLEntities(match[1]))
		if raw == "" {
			continue
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		blocks = append(blocks, flattenJSONLD(payload)...)
	}
	return blocks
}

func flattenJSONLD(payload any) []map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		var objects []map[string]any
		if graph, ok := v["@graph"].([]any); ok {
			for _, entry := range graph {
				objects = append(objects, flattenJSONLD(entry)...)
			}
		}
		base := make(map[string]any, len(v))
		for k, val := range v {
			if k == "@graph" {
				continue
			}
			base[k] = val
		}
		if len(base) > 0 {
			objects = append(objects, base)
		}
		return objects
	case []any:
		var objects []map[string]any
		for _, item := range v {
			objects = append(objects, flattenJSONLD(item)...)
		}
		return objects
	default:
		return nil
	}
}

// pickBestJSONLDBlock prefers the first block whose @type names an
// article-like node; falls back to the first block of any kind.
func pickBestJSONLDBlock(blocks []map[string]any) map[string]any {
	if len(blocks) == 0 {
		return nil
	}
	for _, block := range blocks {
		if isArticleType(block) {
			return block
		}
	}
	return blocks[0]
}

func isArticleType(block map[string]any) bool {
	switch v := block["@type"].(type) {
	case string:
		_, ok := articleTypes[strings.ToLower(v)]
		return ok
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if _, ok := articleTypes[strings.ToLower(s)]; ok {
					return true
				}
			}
		}
	}
	return false
}

func stringField(block map[string]any, key string) (string, bool) {
	v, ok := block[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// extractAuthorNames normalizes JSON-LD's author field, which may be a
// string, an object with a name, or a list of either.
func extractAuthorNames(raw any) []string {
	var names []string
	add := func(name string) {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			return
		}
		for _, existing := range names {
			if existing == name {
				return
			}
		}
		names = append(names, name)
	}

	switch v := raw.(type) {
	case string:
		add(v)
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			add(name)
		}
	case []any:
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				add(entry)
			case map[string]any:
				if name, ok := entry["name"].(string); ok {
					add(name)
				}
			}
		}
	}
	return names
}

func resolveAgainst(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func unescapeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
	return replacer.Replace(s)
}
