package extractor

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// pdfHeader starts every PDF file.
var pdfHeader = []byte("%PDF-")

// pdfInfoFields maps info dictionary keys onto predicates.
var pdfInfoFields = []struct {
	key       string
	predicate string
	pattern   *regexp.Regexp
}{
	{"Title", graph.PredicateTitle, infoPattern("Title")},
	{"Author", graph.PredicateAuthor, infoPattern("Author")},
	{"Subject", "subject", infoPattern("Subject")},
	{"Keywords", "keywords", infoPattern("Keywords")},
	{"Creator", graph.PredicateCreator, infoPattern("Creator")},
	{"Producer", graph.PredicateProducer, infoPattern("Producer")},
	{"CreationDate", graph.PredicateCreated, infoPattern("CreationDate")},
	{"ModDate", graph.PredicateModified, infoPattern("ModDate")},
}

// pdfXMPFields maps XMP packet elements onto predicates.
var pdfXMPFields = []struct {
	predicate string
	pattern   *regexp.Regexp
}{
	{graph.PredicateCreator, regexp.MustCompile(`xmp:CreatorTool>([^<]+)<`)},
	{"documentId", regexp.MustCompile(`xmpMM:DocumentID>([^<]+)<`)},
	{"instanceId", regexp.MustCompile(`xmpMM:InstanceID>([^<]+)<`)},
}

// pdfVersion captures the version from the header line.
var pdfVersion = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)

// infoPattern matches a literal or hex string value of an info dictionary key.
func infoPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`/` + key + `\s*\(((?:\\.|[^\\)])*)\)|/` + key + `\s*<([0-9A-Fa-f\s]+)>`)
}

// PDFExtractor reads the document information dictionary and XMP fields of
// PDF files. It does not render or decompress object streams.
type PDFExtractor struct {
	maxReadSize int64
}

// Ensure PDFExtractor implements Extractor.
var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{maxReadSize: DefaultMaxReadSize}
}

// Name implements Extractor.
func (e *PDFExtractor) Name() string {
	return "pdf"
}

// Supports implements Extractor.
func (e *PDFExtractor) Supports(ct model.ContentType) bool {
	return ct == "application/pdf"
}

// Extract implements Extractor. Content without the %PDF- header is malformed.
func (e *PDFExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	data, err := readLimited(ctx, r, e.maxReadSize)
	if err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	if len(data) == 0 {
		return fragment, nil
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, malformed("%s has no PDF header", item.ID)
	}

	if m := pdfVersion.FindSubmatch(data); m != nil {
		fragment.Add("pdfVersion", string(m[1]))
	}

	for _, field := range pdfInfoFields {
		m := field.pattern.FindSubmatch(data)
		if m == nil {
			continue
		}
		var value string
		if len(m[1]) > 0 {
			value = decodePDFLiteral(m[1])
		} else {
			value = decodePDFHex(string(m[2]))
		}
		fragment.Add(field.predicate, strings.TrimSpace(value))
	}

	for _, field := range pdfXMPFields {
		if m := field.pattern.FindSubmatch(data); m != nil {
			fragment.Add(field.predicate, strings.TrimSpace(string(m[1])))
		}
	}
	return fragment, nil
}

// decodePDFLiteral unescapes a PDF literal string. A UTF-16BE byte order
// mark switches to UTF-16 decoding.
func decodePDFLiteral(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			out = append(out, c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		default:
			out = append(out, raw[i])
		}
	}
	if len(out) >= 2 && out[0] == 0xfe && out[1] == 0xff {
		return decodeUTF16BE(out[2:])
	}
	return string(out)
}

// decodePDFHex decodes a PDF hex string such as "FEFF00410042".
func decodePDFHex(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 == 1 {
		s += "0"
	}
	raw := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		raw = append(raw, hexNibble(s[i])<<4|hexNibble(s[i+1]))
	}
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		return decodeUTF16BE(raw[2:])
	}
	return string(raw)
}

// decodeUTF16BE decodes big-endian UTF-16 bytes.
func decodeUTF16BE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
