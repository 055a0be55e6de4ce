package identify

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/deltacrawl/internal/model"
)

// TestIdentifyDefaults tests the built-in signature rules.
func TestIdentifyDefaults(t *testing.T) {
	t.Parallel()

	tarHeader := make([]byte, 512)
	copy(tarHeader, "docs/readme.txt")
	copy(tarHeader[257:], "ustar\x0000")

	tests := []struct {
		name   string
		prefix []byte
		file   string
		want   model.ContentType
	}{
		{"zip", []byte("PK\x03\x04rest"), "", TypeZip},
		{"empty zip", []byte("PK\x05\x06"), "", TypeZip},
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, "", TypeGzip},
		{"bzip2", []byte("BZh91AY"), "", TypeBzip2},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}, "", TypeZstd},
		{"tar at offset 257", tarHeader, "", TypeTar},
		{"pdf", []byte("%PDF-1.7\n"), "", TypePDF},
		{"png", []byte("\x89PNG\r\n\x1a\n...."), "", TypePNG},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "", TypeJPEG},
		{"gif", []byte("GIF89a..."), "", TypeGIF},
		{"tiff little endian", []byte("II*\x00...."), "", TypeTIFF},
		{"html doctype", []byte("<!DOCTYPE html><html>"), "", TypeHTML},
		{"vcard", []byte("BEGIN:VCARD\r\nVERSION:3.0"), "", TypeVCard},
		{"mbox", []byte("From alice@example.com Mon"), "", TypeMbox},
		{"utf-8 bom", []byte("\xef\xbb\xbfhello"), "", TypePlainText},
		{"signature beats extension", []byte("%PDF-1.4"), "report.txt", TypePDF},
		{"extension fallback", []byte("plain words"), "notes.MD", TypeMarkdown},
		{"brotli by extension", []byte{0x1b, 0x02}, "data.json.br", TypeBrotli},
		{"unknown", []byte{0x00, 0x01, 0x02}, "blob", model.ContentTypeUnknown},
		{"empty prefix and no name", nil, "", model.ContentTypeUnknown},
	}

	id := Default(WithSystemMIME(false))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := id.Identify(tt.prefix, tt.file); got != tt.want {
				t.Errorf("Identify() = %q, expected %q", got, tt.want)
			}
		})
	}
}

// TestIdentifySpecificity tests that the longer signature wins when both match.
func TestIdentifySpecificity(t *testing.T) {
	t.Parallel()

	t.Run("longer rule registered last", func(t *testing.T) {
		t.Parallel()

		id := New(WithSystemMIME(false))
		id.AddRule("image/x-gif-family", 0, []byte("GIF"))
		id.AddRule("image/gif", 0, []byte("GIF89a"))

		if got := id.Identify([]byte("GIF89a"), ""); got != "image/gif" {
			t.Errorf("expected image/gif, got %q", got)
		}
		if got := id.Identify([]byte("GIF00"), ""); got != "image/x-gif-family" {
			t.Errorf("expected family fallback, got %q", got)
		}
	})

	t.Run("longer rule registered first", func(t *testing.T) {
		t.Parallel()

		id := New(WithSystemMIME(false))
		id.AddRule("image/gif", 0, []byte("GIF89a"))
		id.AddRule("image/x-gif-family", 0, []byte("GIF"))

		if got := id.Identify([]byte("GIF89a"), ""); got != "image/gif" {
			t.Errorf("expected image/gif, got %q", got)
		}
	})

	t.Run("equal specificity keeps registration order", func(t *testing.T) {
		t.Parallel()

		id := New(WithSystemMIME(false))
		id.AddRule("first/type", 0, []byte("AB"))
		id.AddRule("second/type", 0, []byte("AB"))

		if got := id.Identify([]byte("ABC"), ""); got != "first/type" {
			t.Errorf("expected first/type, got %q", got)
		}
	})

	t.Run("offset counts toward specificity", func(t *testing.T) {
		t.Parallel()

		id := New(WithSystemMIME(false))
		id.AddRule("short/type", 0, []byte("ABCD"))
		id.AddRule("deep/type", 6, []byte("XY"))

		if got := id.Identify([]byte("ABCD..XY"), ""); got != "deep/type" {
			t.Errorf("expected deep/type, got %q", got)
		}
	})
}

// TestIdentifySystemMIME tests the system MIME table fallback.
func TestIdentifySystemMIME(t *testing.T) {
	t.Parallel()

	withSystem := New()
	if got := withSystem.Identify([]byte("????"), "logo.png"); got != "image/png" {
		t.Errorf("expected image/png from system table, got %q", got)
	}

	without := New(WithSystemMIME(false))
	if got := without.Identify([]byte("????"), "logo.png"); got != model.ContentTypeUnknown {
		t.Errorf("expected unknown without system table, got %q", got)
	}
}

// TestIdentifyStream tests that identification never consumes the stream.
func TestIdentifyStream(t *testing.T) {
	t.Parallel()

	t.Run("rewinds to start", func(t *testing.T) {
		t.Parallel()

		content := "%PDF-1.5\n" + strings.Repeat("x", 2000)
		r := bytes.NewReader([]byte(content))

		ct, err := Default().IdentifyStream(r, "doc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ct != TypePDF {
			t.Errorf("expected %q, got %q", TypePDF, ct)
		}

		rest, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(rest) != content {
			t.Error("stream was consumed by identification")
		}
	})

	t.Run("restores a non-zero position", func(t *testing.T) {
		t.Parallel()

		r := bytes.NewReader([]byte("xxxGIF89a"))
		if _, err := r.Seek(3, io.SeekStart); err != nil {
			t.Fatal(err)
		}

		ct, err := Default().IdentifyStream(r, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ct != TypeGIF {
			t.Errorf("expected %q, got %q", TypeGIF, ct)
		}

		pos, _ := r.Seek(0, io.SeekCurrent) //nolint:errcheck // bytes.Reader never fails here
		if pos != 3 {
			t.Errorf("expected position 3, got %d", pos)
		}
	})

	t.Run("short stream", func(t *testing.T) {
		t.Parallel()

		ct, err := Default(WithSystemMIME(false)).IdentifyStream(bytes.NewReader([]byte("BZ")), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ct != model.ContentTypeUnknown {
			t.Errorf("expected unknown, got %q", ct)
		}
	})
}

// TestIdentifierConcurrent tests concurrent rule registration and lookup.
func TestIdentifierConcurrent(t *testing.T) {
	t.Parallel()

	id := Default()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id.AddRule(model.ContentType("x/test"), 0, []byte{byte(i), 0xAA, 0xBB})
		}()
		go func() {
			defer wg.Done()
			if got := id.Identify([]byte("%PDF-"), ""); got != TypePDF {
				t.Errorf("expected pdf, got %q", got)
			}
		}()
	}
	wg.Wait()

	if len(id.Rules()) < 20 {
		t.Errorf("expected at least 20 rules, got %d", len(id.Rules()))
	}
}
