package extractor

import (
	"context"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
	"github.com/nao1215/deltacrawl/internal/source"
)

// Parser extracts links, metadata and text from HTML content.
type Parser struct {
	// baseURL resolves relative references. Nil leaves them as written.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one HTML document.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Links contains the resolved href targets of <a> elements.
	Links []string

	// Images contains the resolved sources of <img> elements and icons.
	Images []string

	// Scripts contains the resolved sources of <script> elements.
	Scripts []string

	// MetaTags maps meta names (or OpenGraph properties) to their content.
	MetaTags map[string]string

	// Emails contains the addresses found in text and mailto links.
	Emails []string

	// Lang is the lang attribute of the <html> element.
	Lang string
}

// NewParser creates a Parser. An empty baseURL keeps references unresolved.
func NewParser(baseURL string) (*Parser, error) {
	if baseURL == "" {
		return &Parser{}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the document once and collects every field of ParseResult.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:    make([]string, 0),
		Images:   make([]string, 0),
		Scripts:  make([]string, 0),
		MetaTags: make(map[string]string),
		Emails:   make([]string, 0),
	}

	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			p.processElement(n, result)
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Emails = appendUnique(result.Emails, extractEmails(text.String())...)
	return result, nil
}

// processElement handles one element node.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "html":
		result.Lang = getAttr(n, "lang")

	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		href := strings.TrimSpace(getAttr(n, "href"))
		if addr, ok := strings.CutPrefix(href, "mailto:"); ok {
			addr, _, _ = strings.Cut(addr, "?")
			if addr != "" {
				result.Emails = appendUnique(result.Emails, strings.ToLower(addr))
			}
			return
		}
		if resolved := p.resolveURL(href); resolved != "" {
			result.Links = append(result.Links, resolved)
		}

	case "img":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Images = append(result.Images, src)
		}

	case "script":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Scripts = append(result.Scripts, src)
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property")
		}
		content := getAttr(n, "content")
		if name != "" && content != "" {
			result.MetaTags[strings.ToLower(name)] = content
		}

	case "link":
		rel := getAttr(n, "rel")
		if rel == "icon" || rel == "shortcut icon" {
			if href := p.resolveURL(getAttr(n, "href")); href != "" {
				result.Images = append(result.Images, href)
			}
		}
	}
}

// resolveURL resolves href against the base URL. Pseudo links such as
// javascript: and fragments alone yield "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if p.baseURL == nil {
		return u.String()
	}
	return p.baseURL.ResolveReference(u).String()
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// extractEmails returns the lower-cased addresses found in text.
func extractEmails(text string) []string {
	found := make([]string, 0)
	for _, m := range emailRegex.FindAllString(text, -1) {
		found = appendUnique(found, strings.ToLower(m))
	}
	return found
}

// appendUnique appends the values not yet present in list.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range list {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// baseOf returns the URL relative links of item resolve against.
// Items that are not web pages keep their links unresolved.
func baseOf(item *model.Item) string {
	if strings.HasPrefix(item.ID, "http://") || strings.HasPrefix(item.ID, "https://") {
		return item.ID
	}
	return ""
}

// HTMLExtractor describes HTML documents.
type HTMLExtractor struct {
	maxReadSize int64
}

// Ensure HTMLExtractor implements Extractor.
var _ Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{maxReadSize: DefaultMaxReadSize}
}

// Name implements Extractor.
func (e *HTMLExtractor) Name() string {
	return "html"
}

// Supports implements Extractor.
func (e *HTMLExtractor) Supports(ct model.ContentType) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	raw, err := readLimited(ctx, r, e.maxReadSize)
	if err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fragment, nil
	}

	parser, err := NewParser(baseOf(item))
	if err != nil {
		return nil, malformed("invalid base URL %s: %v", item.ID, err)
	}
	result, err := parser.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, malformed("failed to parse HTML %s: %v", item.ID, err)
	}

	fragment.Add(graph.PredicateTitle, result.Title)
	fragment.Add("lang", result.Lang)
	if author, ok := result.MetaTags["author"]; ok {
		fragment.Add(graph.PredicateAuthor, author)
	}
	for _, name := range sortedKeys(result.MetaTags) {
		fragment.Add(graph.PredicateMetaPrefix+name, result.MetaTags[name])
	}
	for _, link := range result.Links {
		fragment.Add(graph.PredicateLinksTo, link)
	}
	for _, addr := range result.Emails {
		fragment.Add(graph.PredicateEmail, addr)
	}
	fragment.Add("linkCount", strconv.Itoa(len(result.Links)))
	fragment.Add("imageCount", strconv.Itoa(len(result.Images)))
	return fragment, nil
}

// HTMLLinkExtractor discovers page links for network sources.
type HTMLLinkExtractor struct{}

// Ensure HTMLLinkExtractor implements source.LinkExtractor.
var _ source.LinkExtractor = (*HTMLLinkExtractor)(nil)

// NewHTMLLinkExtractor creates an HTMLLinkExtractor.
func NewHTMLLinkExtractor() *HTMLLinkExtractor {
	return &HTMLLinkExtractor{}
}

// Name implements source.LinkExtractor.
func (e *HTMLLinkExtractor) Name() string {
	return "html-links"
}

// Supports implements source.LinkExtractor.
func (e *HTMLLinkExtractor) Supports(ct model.ContentType) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// Links implements source.LinkExtractor.
func (e *HTMLLinkExtractor) Links(ctx context.Context, base *url.URL, r io.Reader) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := &Parser{baseURL: base}
	result, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}
	return result.Links, nil
}
