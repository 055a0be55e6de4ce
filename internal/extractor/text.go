package extractor

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// Encoding labels recorded by TextExtractor.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
)

// binarySniffSize is how many leading bytes are checked for NUL bytes.
const binarySniffSize = 512

// TextExtractor counts lines, words and characters of textual content.
// A byte order mark selects UTF-16 or UTF-8 decoding; otherwise UTF-8 is assumed.
type TextExtractor struct {
	maxReadSize int64
}

// Ensure TextExtractor implements Extractor.
var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{maxReadSize: DefaultMaxReadSize}
}

// Name implements Extractor.
func (e *TextExtractor) Name() string {
	return "text"
}

// Supports implements Extractor.
func (e *TextExtractor) Supports(ct model.ContentType) bool {
	return ct.Family() == "text"
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	raw, err := readLimited(ctx, r, e.maxReadSize)
	if err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	if len(raw) == 0 {
		fragment.Add(graph.PredicateLineCount, "0")
		return fragment, nil
	}

	encoding := detectEncoding(raw)
	if encoding == EncodingUTF8 && bytes.IndexByte(raw[:min(len(raw), binarySniffSize)], 0) >= 0 {
		return nil, malformed("%s looks binary", item.ID)
	}

	decoded, _, err := transform.Bytes(xunicode.BOMOverride(xunicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, malformed("failed to decode %s: %v", item.ID, err)
	}

	lines, words, chars := countText(decoded)
	fragment.Add(graph.PredicateEncoding, encoding)
	fragment.Add(graph.PredicateLineCount, strconv.Itoa(lines))
	fragment.Add(graph.PredicateWordCount, strconv.Itoa(words))
	fragment.Add(graph.PredicateCharCount, strconv.Itoa(chars))
	return fragment, nil
}

// detectEncoding names the encoding announced by a byte order mark.
func detectEncoding(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte{0xff, 0xfe}):
		return EncodingUTF16LE
	case bytes.HasPrefix(raw, []byte{0xfe, 0xff}):
		return EncodingUTF16BE
	default:
		return EncodingUTF8
	}
}

// countText returns the number of lines, whitespace-separated words and runes.
// A final line without a trailing newline counts as a line.
func countText(text []byte) (lines, words, chars int) {
	inWord := false
	last := rune(0)
	for len(text) > 0 {
		r, size := utf8.DecodeRune(text)
		text = text[size:]
		chars++
		last = r

		if r == '\n' {
			lines++
		}
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	if chars > 0 && last != '\n' {
		lines++
	}
	return lines, words, chars
}
