// Package identify classifies byte streams into content type labels.
//
// Identification is two-tiered. Byte-signature (magic) rules are tried first,
// longest and most specific first, so that "GIF89a" beats a hypothetical
// "GIF" rule when both match. Many textual and container formats carry no
// reliable signature, so when no rule matches the name's extension decides,
// and ContentTypeUnknown is the final answer.
//
// Identification never fails: an unresolved type is a valid outcome. It also
// never consumes the stream; IdentifyStream peeks a bounded prefix and seeks
// back.
package identify
