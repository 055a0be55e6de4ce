package extractor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// VCardExtractor reads contact cards (RFC 6350) from address-book items.
// Every card contributes its FN, EMAIL, TEL and ORG properties; the
// structured N property stands in for a missing FN.
type VCardExtractor struct {
	maxReadSize int64
}

// Ensure VCardExtractor implements Extractor.
var _ Extractor = (*VCardExtractor)(nil)

// NewVCardExtractor creates a VCardExtractor.
func NewVCardExtractor() *VCardExtractor {
	return &VCardExtractor{maxReadSize: DefaultMaxReadSize}
}

// Name implements Extractor.
func (e *VCardExtractor) Name() string {
	return "vcard"
}

// Supports implements Extractor.
func (e *VCardExtractor) Supports(ct model.ContentType) bool {
	return ct == "text/vcard" || ct == "text/x-vcard"
}

// Extract implements Extractor.
func (e *VCardExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	data, err := readLimited(ctx, r, e.maxReadSize)
	if err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	if len(bytes.TrimSpace(data)) == 0 {
		return fragment, nil
	}

	cards := 0
	inCard := false
	hasFN := false
	structuredName := ""
	for _, line := range unfoldLines(data) {
		name, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		switch {
		case name == "BEGIN" && strings.EqualFold(value, "VCARD"):
			if inCard {
				return nil, malformed("%s: nested BEGIN:VCARD", item.ID)
			}
			inCard = true
			hasFN = false
			structuredName = ""
			cards++
		case name == "END" && strings.EqualFold(value, "VCARD"):
			if !inCard {
				return nil, malformed("%s: END:VCARD without BEGIN", item.ID)
			}
			if !hasFN && structuredName != "" {
				fragment.Add(graph.PredicateFullName, nameFromN(structuredName))
			}
			inCard = false
		case !inCard:
			continue
		case name == "FN":
			hasFN = true
			fragment.Add(graph.PredicateFullName, unescapeVCard(value))
		case name == "N":
			structuredName = value
		case name == "EMAIL":
			fragment.Add(graph.PredicateEmail, strings.ToLower(value))
		case name == "TEL":
			fragment.Add(graph.PredicatePhone, strings.TrimPrefix(value, "tel:"))
		case name == "ORG":
			fragment.Add("organization", unescapeVCard(strings.ReplaceAll(value, ";", ", ")))
		}
	}
	if cards == 0 {
		return nil, malformed("%s: no BEGIN:VCARD found", item.ID)
	}
	if inCard {
		return nil, malformed("%s: unterminated vCard", item.ID)
	}
	fragment.Add("cardCount", strconv.Itoa(cards))
	return fragment, nil
}

// unfoldLines joins folded continuation lines (lines starting with a space or tab).
func unfoldLines(data []byte) []string {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitProperty splits "NAME;PARAMS:value" into the upper-cased name
// (without group prefix and parameters) and the value.
func splitProperty(line string) (string, string, bool) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	name, _, _ := strings.Cut(head, ";")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(name)), strings.TrimSpace(value), true
}

// nameFromN builds "Given Family" from the structured N property.
func nameFromN(value string) string {
	parts := strings.Split(value, ";")
	fields := make([]string, 0, 2)
	if len(parts) > 1 && parts[1] != "" {
		fields = append(fields, parts[1])
	}
	if parts[0] != "" {
		fields = append(fields, parts[0])
	}
	return cases.Title(language.Und, cases.NoLower).String(unescapeVCard(strings.Join(fields, " ")))
}

// unescapeVCard reverses the vCard text escapes.
func unescapeVCard(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}
