package source

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/sha3"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/deltacrawl/internal/model"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "deltacrawl/1.0 (+https://github.com/nao1215/deltacrawl)"

// HTTPSource crawls the pages of a single web host breadth-first.
//
// Each fetched page becomes one item whose identifier is its normalized URL.
// The body is kept in memory so the item's content can be reopened cheaply.
type HTTPSource struct {
	// start is the normalized start URL.
	start *url.URL

	// client performs the requests.
	client *http.Client

	// limiter paces requests. Nil disables pacing.
	limiter *rate.Limiter

	// links resolves the link extractors for a response content type.
	links LinkResolver

	// maxDepth limits how many links away from the start page to crawl.
	// 0 means only the start page.
	maxDepth int

	// maxPages limits the total number of pages fetched.
	maxPages int

	// maxBodySize limits the size of response bodies.
	maxBodySize int64

	// userAgent is the User-Agent header value.
	userAgent string

	// ignorePatterns are URL path patterns to skip.
	ignorePatterns []string

	// followPatterns, when set, restrict crawling to matching URL paths.
	followPatterns []string

	// proxyAddress is an optional SOCKS5 proxy in host:port form.
	proxyAddress string

	// timeout is the per-request timeout of the default client.
	timeout time.Duration
}

// Ensure HTTPSource implements Source.
var _ Source = (*HTTPSource)(nil)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets the HTTP client. It takes precedence over WithProxy.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithLinkExtractors sets the resolver used to discover further pages.
// Without it only the start page is fetched.
func WithLinkExtractors(links LinkResolver) HTTPOption {
	return func(s *HTTPSource) {
		s.links = links
	}
}

// WithMaxDepth sets the maximum link depth from the start page.
func WithMaxDepth(depth int) HTTPOption {
	return func(s *HTTPSource) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to fetch.
func WithMaxPages(maxPages int) HTTPOption {
	return func(s *HTTPSource) {
		s.maxPages = maxPages
	}
}

// WithRateLimit allows at most requests per window, with bursts of one.
// A zero value disables pacing.
func WithRateLimit(requests int, window time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if requests <= 0 || window <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), 1)
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) HTTPOption {
	return func(s *HTTPSource) {
		s.maxBodySize = size
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// WithHTTPIgnorePatterns sets URL path patterns to skip.
func WithHTTPIgnorePatterns(patterns []string) HTTPOption {
	return func(s *HTTPSource) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching one of patterns.
func WithFollowPatterns(patterns []string) HTTPOption {
	return func(s *HTTPSource) {
		s.followPatterns = patterns
	}
}

// WithProxy routes requests through the SOCKS5 proxy at address (host:port).
func WithProxy(address string) HTTPOption {
	return func(s *HTTPSource) {
		s.proxyAddress = address
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.timeout = d
	}
}

// NewHTTPSource creates a source that crawls startURL.
func NewHTTPSource(startURL string, opts ...HTTPOption) (*HTTPSource, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRoot, start.Scheme)
	}
	if start.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidRoot)
	}

	s := &HTTPSource{
		start:       normalizeURL(start),
		maxDepth:    5,
		maxPages:    100,
		maxBodySize: 10 * 1024 * 1024,
		userAgent:   DefaultUserAgent,
		timeout:     30 * time.Second,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := newHTTPClient(s.proxyAddress, s.timeout)
		if err != nil {
			return nil, err
		}
		s.client = client
	}
	return s, nil
}

// newHTTPClient builds a client, routed through a SOCKS5 proxy when address is set.
// Compression is negotiated by the source itself so that gzip and brotli are both accepted.
func newHTTPClient(address string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	if address != "" {
		dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// ID implements Source.
func (s *HTTPSource) ID() string {
	return s.start.String()
}

// queueItem is a pending page of the breadth-first crawl.
type queueItem struct {
	url   string
	depth int
}

// page is a fetched response.
type page struct {
	url         string
	body        []byte
	contentType model.ContentType
	marker      string
}

// Enumerate implements Source. A failure to fetch the start page is fatal;
// failures on other pages are reported per item.
func (s *HTTPSource) Enumerate(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		visited := make(map[string]bool)
		queue := []queueItem{{url: s.start.String(), depth: 0}}
		fetched := 0

		for len(queue) > 0 && fetched < s.maxPages {
			if ctx.Err() != nil {
				return
			}

			next := queue[0]
			queue = queue[1:]
			if visited[next.url] {
				continue
			}
			visited[next.url] = true

			pg, err := s.fetch(ctx, next.url)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if next.depth == 0 {
					yield(nil, fatal(s.ID(), err))
					return
				}
				if !yield(nil, accessError(next.url, err)) {
					return
				}
				continue
			}
			fetched++

			if next.depth < s.maxDepth {
				for _, link := range s.discover(ctx, pg) {
					if !visited[link] {
						queue = append(queue, queueItem{url: link, depth: next.depth + 1})
					}
				}
			}

			if !yield(s.newItem(pg), nil) {
				return
			}
		}
	}
}

// newItem wraps a fetched page into an item.
func (s *HTTPSource) newItem(pg *page) *model.Item {
	name := path.Base(strings.TrimSuffix(pathOfURL(pg.url), "/"))
	if name == "." || name == "/" || name == "" {
		name = "index"
	}
	body := pg.body
	item := model.NewItem(pg.url, name, int64(len(body)), pg.marker, func(ctx context.Context) (io.ReadSeekCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return readSeekNopCloser{bytes.NewReader(body)}, nil
	})
	item.DeclaredType = pg.contentType
	return item
}

// discover returns the crawlable same-host links of pg.
func (s *HTTPSource) discover(ctx context.Context, pg *page) []string {
	if s.links == nil {
		return nil
	}
	base, err := url.Parse(pg.url)
	if err != nil {
		return nil
	}

	out := make([]string, 0)
	seen := make(map[string]bool)
	for _, le := range s.links.Resolve(pg.contentType) {
		if !le.Supports(pg.contentType) {
			continue
		}
		links, err := le.Links(ctx, base, bytes.NewReader(pg.body))
		if err != nil {
			continue
		}
		for _, link := range links {
			u, err := url.Parse(link)
			if err != nil || !strings.EqualFold(u.Host, s.start.Host) || !s.shouldCrawl(u) {
				continue
			}
			normalized := normalizeURL(u).String()
			if !seen[normalized] {
				seen[normalized] = true
				out = append(out, normalized)
			}
		}
		break
	}
	return out
}

// fetch retrieves one page.
func (s *HTTPSource) fetch(ctx context.Context, pageURL string) (*page, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := s.readBody(resp)
	if err != nil {
		return nil, err
	}

	return &page{
		url:         pageURL,
		body:        body,
		contentType: headerContentType(resp.Header.Get("Content-Type")),
		marker:      responseMarker(resp.Header, body),
	}, nil
}

// readBody decodes and reads a response body up to maxBodySize.
func (s *HTTPSource) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, s.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > s.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, s.maxBodySize)
	}
	return body, nil
}

// Open implements Source. Items produced by Enumerate are served from memory;
// other items are fetched again.
func (s *HTTPSource) Open(ctx context.Context, item *model.Item) (io.ReadSeekCloser, error) {
	if item.HasContent() {
		return item.Open(ctx)
	}
	pg, err := s.fetch(ctx, item.ID)
	if err != nil {
		return nil, errors.Join(model.ErrAccess, err)
	}
	return readSeekNopCloser{bytes.NewReader(pg.body)}, nil
}

// shouldCrawl applies the ignore and follow patterns to u's path.
func (s *HTTPSource) shouldCrawl(u *url.URL) bool {
	p := u.Path
	if p == "" {
		p = "/"
	}
	if matchAny(s.ignorePatterns, p) {
		return false
	}
	if len(s.followPatterns) > 0 {
		return matchAny(s.followPatterns, p)
	}
	return true
}

// responseMarker prefers ETag, then Last-Modified, then a hash of the body.
func responseMarker(h http.Header, body []byte) string {
	if etag := h.Get("ETag"); etag != "" {
		return "etag:" + etag
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			return "modified:" + t.UTC().Format(time.RFC3339)
		}
		return "modified:" + lm
	}
	sum := sha3.Sum256(body)
	return "sha3:" + hex.EncodeToString(sum[:])
}

// headerContentType strips parameters from a Content-Type header.
func headerContentType(v string) model.ContentType {
	if v == "" {
		return model.ContentTypeUnknown
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return model.ContentTypeUnknown
	}
	return model.ContentType(mt)
}

// normalizeURL drops the fragment, lower-cases scheme and host, and maps an
// empty path to "/".
func normalizeURL(u *url.URL) *url.URL {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return &n
}

// pathOfURL returns the path of raw or "/".
func pathOfURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
