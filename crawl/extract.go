package crawl

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// contentSelector lists the tags whose text is kept.
const contentSelector = "p, h1, h2, h3, h4, h5, h6, li, div, span"

// Fragments shorter than this (in characters) are navigation labels and icons.
const minFragmentLen = 10

// Extractor turns a page's HTML into plain text.
type Extractor interface {
	Extract(pageURL, rawHTML string) string
}

// TagExtractor keeps text from the content tags of the whole document.
type TagExtractor struct{}

var _ Extractor = TagExtractor{}

func (TagExtractor) Extract(_ string, rawHTML string) string {
	return ExtractText(rawHTML)
}

// ReadabilityExtractor isolates the main article of a page before extracting
// its text. Pages readability cannot handle fall back to TagExtractor.
type ReadabilityExtractor struct{}

var _ Extractor = ReadabilityExtractor{}

func (ReadabilityExtractor) Extract(pageURL, rawHTML string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ExtractText(rawHTML)
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ExtractText(rawHTML)
	}
	if text := ExtractText(article.Content); text != "" {
		return text
	}
	return ExtractText(rawHTML)
}

// NewExtractor returns the extractor registered under name: "tags" (the
// default, also used for "") or "readability". Unknown names return false.
func NewExtractor(name string) (Extractor, bool) {
	switch name {
	case "", "tags":
		return TagExtractor{}, true
	case "readability":
		return ReadabilityExtractor{}, true
	}
	return nil, false
}

// ExtractText returns the text of every content tag in document order, one
// fragment per line. Script and style contents are discarded. Each fragment is
// the concatenation of the tag's trimmed text nodes; fragments under ten
// characters are dropped. Nested content tags each contribute a fragment.
// Unparseable input yields "".
func ExtractText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()

	var fragments []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		text := strippedText(s)
		if utf8.RuneCountInString(text) < minFragmentLen {
			return
		}
		fragments = append(fragments, text)
	})
	return strings.Join(fragments, "\n")
}

// strippedText joins the trimmed, non-empty text nodes below the selection.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}

// ExtractLinks returns the href of every anchor, resolved against pageURL,
// in document order. Unparseable hrefs are ignored.
func ExtractLinks(pageURL, rawHTML string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links
}
