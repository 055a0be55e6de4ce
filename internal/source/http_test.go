package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/deltacrawl/internal/model"
)

var hrefRegex = regexp.MustCompile(`href="([^"]+)"`)

// hrefExtractor is a minimal LinkExtractor for tests.
type hrefExtractor struct{}

func (hrefExtractor) Name() string                       { return "href" }
func (hrefExtractor) Supports(ct model.ContentType) bool { return ct == "text/html" }
func (hrefExtractor) Links(_ context.Context, base *url.URL, r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0)
	for _, m := range hrefRegex.FindAllStringSubmatch(string(data), -1) {
		u, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		links = append(links, base.ResolveReference(u).String())
	}
	return links, nil
}

// staticResolver resolves every type to the same extractors.
type staticResolver []LinkExtractor

func (s staticResolver) Resolve(model.ContentType) []LinkExtractor { return s }

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"root-v1"`)
		fmt.Fprint(w, `<html><a href="/a">a</a><a href="/b#frag">b</a><a href="/admin/x">x</a><a href="http://elsewhere.test/">e</a><a href="/missing">m</a></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		fmt.Fprint(w, `<html><a href="/">home</a></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Encoding", "br")
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte("plain body"))
		_ = bw.Close()
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/admin/x", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "secret")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPSourceEnumerate(t *testing.T) {
	t.Parallel()

	server := newSite(t)
	src, err := NewHTTPSource(server.URL,
		WithLinkExtractors(staticResolver{hrefExtractor{}}),
		WithHTTPIgnorePatterns([]string{"/admin/*"}),
		WithRateLimit(0, 0),
	)
	if err != nil {
		t.Fatal(err)
	}

	items, errs := collect(t, src)

	got := make(map[string]*model.Item)
	for _, item := range items {
		got[strings.TrimPrefix(item.ID, server.URL)] = item
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pages, got %v", got)
	}
	if _, ok := got["/admin/x"]; ok {
		t.Error("ignored path must not be crawled")
	}

	if got["/"].Marker != `etag:"root-v1"` {
		t.Errorf("unexpected root marker %q", got["/"].Marker)
	}
	if got["/a"].Marker != "modified:2006-01-02T15:04:05Z" {
		t.Errorf("unexpected /a marker %q", got["/a"].Marker)
	}
	if !strings.HasPrefix(got["/b"].Marker, "sha3:") {
		t.Errorf("unexpected /b marker %q", got["/b"].Marker)
	}
	if got["/b"].DeclaredType != "text/plain" {
		t.Errorf("unexpected declared type %q", got["/b"].DeclaredType)
	}

	rc, err := src.Open(context.Background(), got["/b"])
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "plain body" {
		t.Errorf("expected decoded brotli body, got %q", body)
	}

	if len(errs) != 1 || !errors.Is(errs[0], model.ErrAccess) {
		t.Errorf("expected one access error for /missing, got %v", errs)
	}
}

func TestHTTPSourceRootFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	src, err := NewHTTPSource(server.URL, WithRateLimit(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	_, errs := collect(t, src)
	if len(errs) != 1 || !errors.Is(errs[0], model.ErrSourceFatal) {
		t.Fatalf("expected one fatal error, got %v", errs)
	}
}

func TestHTTPSourceLimits(t *testing.T) {
	t.Parallel()

	server := newSite(t)

	t.Run("depth zero fetches only the start page", func(t *testing.T) {
		t.Parallel()
		src, err := NewHTTPSource(server.URL,
			WithLinkExtractors(staticResolver{hrefExtractor{}}),
			WithMaxDepth(0),
			WithRateLimit(0, 0),
		)
		if err != nil {
			t.Fatal(err)
		}
		items, _ := collect(t, src)
		if len(items) != 1 {
			t.Errorf("expected 1 page, got %d", len(items))
		}
	})

	t.Run("body size limit", func(t *testing.T) {
		t.Parallel()
		src, err := NewHTTPSource(server.URL, WithMaxBodySize(8), WithRateLimit(0, 0))
		if err != nil {
			t.Fatal(err)
		}
		_, errs := collect(t, src)
		if len(errs) != 1 || !errors.Is(errs[0], ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", errs)
		}
	})
}

func TestNewHTTPSourceValidation(t *testing.T) {
	t.Parallel()

	tests := []string{"", "ftp://example.com", "http://"}
	for _, raw := range tests {
		if _, err := NewHTTPSource(raw); !errors.Is(err, ErrInvalidRoot) {
			t.Errorf("NewHTTPSource(%q): expected ErrInvalidRoot, got %v", raw, err)
		}
	}

	if _, err := NewHTTPSource("http://example.com", WithProxy("127.0.0.1:9050")); err != nil {
		t.Errorf("unexpected error with proxy: %v", err)
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/users", true},
		{"/admin/*", "/admin", true},
		{"/admin/*", "/administrator", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.txt", false},
		{".git", "/repo/.git", true},
		{"/api/v?", "/api/v1", true},
		{"[", "/x", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
