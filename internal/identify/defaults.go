package identify

import "github.com/nao1215/deltacrawl/internal/model"

// Content type labels understood by the built-in providers.
const (
	TypeZip       model.ContentType = "application/zip"
	TypeTar       model.ContentType = "application/x-tar"
	TypeGzip      model.ContentType = "application/gzip"
	TypeBzip2     model.ContentType = "application/x-bzip2"
	TypeZstd      model.ContentType = "application/zstd"
	TypeBrotli    model.ContentType = "application/x-brotli"
	TypePDF       model.ContentType = "application/pdf"
	TypeXML       model.ContentType = "application/xml"
	TypeJSON      model.ContentType = "application/json"
	TypeMbox      model.ContentType = "application/mbox"
	TypeRFC822    model.ContentType = "message/rfc822"
	TypePNG       model.ContentType = "image/png"
	TypeJPEG      model.ContentType = "image/jpeg"
	TypeGIF       model.ContentType = "image/gif"
	TypeTIFF      model.ContentType = "image/tiff"
	TypeHTML      model.ContentType = "text/html"
	TypePlainText model.ContentType = "text/plain"
	TypeMarkdown  model.ContentType = "text/markdown"
	TypeCSV       model.ContentType = "text/csv"
	TypeVCard     model.ContentType = "text/vcard"
)

// Default returns an Identifier loaded with the built-in signature rules
// and extension table.
func Default(opts ...Option) *Identifier {
	id := New(opts...)

	rules := []struct {
		ct     model.ContentType
		offset int
		magic  string
	}{
		{TypeZip, 0, "PK\x03\x04"},
		{TypeZip, 0, "PK\x05\x06"},
		{TypeTar, 257, "ustar"},
		{TypeGzip, 0, "\x1f\x8b"},
		{TypeBzip2, 0, "BZh"},
		{TypeZstd, 0, "\x28\xb5\x2f\xfd"},
		{TypePDF, 0, "%PDF-"},
		{TypePNG, 0, "\x89PNG\r\n\x1a\n"},
		{TypeJPEG, 0, "\xff\xd8\xff"},
		{TypeGIF, 0, "GIF87a"},
		{TypeGIF, 0, "GIF89a"},
		{TypeTIFF, 0, "II*\x00"},
		{TypeTIFF, 0, "MM\x00*"},
		{TypeHTML, 0, "<!DOCTYPE html"},
		{TypeHTML, 0, "<!doctype html"},
		{TypeHTML, 0, "<html"},
		{TypeHTML, 0, "<HTML"},
		{TypeXML, 0, "<?xml"},
		{TypeMbox, 0, "From "},
		{TypeRFC822, 0, "Return-Path:"},
		{TypeVCard, 0, "BEGIN:VCARD"},
		{TypePlainText, 0, "\xef\xbb\xbf"},
		{TypePlainText, 0, "\xff\xfe"},
		{TypePlainText, 0, "\xfe\xff"},
	}
	for _, r := range rules {
		id.AddRule(r.ct, r.offset, []byte(r.magic))
	}

	extensions := map[string]model.ContentType{
		"br":    TypeBrotli,
		"zst":   TypeZstd,
		"tar":   TypeTar,
		"txt":   TypePlainText,
		"log":   TypePlainText,
		"md":    TypeMarkdown,
		"csv":   TypeCSV,
		"vcf":   TypeVCard,
		"vcard": TypeVCard,
		"eml":   TypeRFC822,
		"mbox":  TypeMbox,
		"html":  TypeHTML,
		"htm":   TypeHTML,
		"xml":   TypeXML,
		"json":  TypeJSON,
	}
	for ext, ct := range extensions {
		id.AddExtension(ext, ct)
	}

	return id
}
