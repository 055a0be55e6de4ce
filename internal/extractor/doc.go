// Package extractor provides the built-in metadata extractors.
//
// An Extractor turns the content of one item into a graph.Fragment. The crawl
// engine resolves the extractors registered for an item's content type and
// tries them in order until one succeeds. Extractors fail with a wrapped
// model.ErrExtraction on malformed input; empty content is never an error.
//
// The built-in extractors are:
//
//   - TextExtractor for text/* (BOM-aware line, word and character counts)
//   - HTMLExtractor for text/html (title, meta tags, links)
//   - EXIFExtractor for image/jpeg and image/tiff
//   - PDFExtractor for application/pdf (info dictionary and XMP fields)
//   - VCardExtractor for text/vcard
//   - MailExtractor for message/rfc822
//
// HTMLLinkExtractor is not an Extractor: it implements source.LinkExtractor
// so network sources can discover further pages.
package extractor
