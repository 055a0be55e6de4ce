package extractor

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/model"
)

// MailExtractor reads the headers of RFC 822 messages.
type MailExtractor struct{}

// Ensure MailExtractor implements Extractor.
var _ Extractor = (*MailExtractor)(nil)

// NewMailExtractor creates a MailExtractor.
func NewMailExtractor() *MailExtractor {
	return &MailExtractor{}
}

// Name implements Extractor.
func (e *MailExtractor) Name() string {
	return "mail"
}

// Supports implements Extractor.
func (e *MailExtractor) Supports(ct model.ContentType) bool {
	return ct == "message/rfc822"
}

// Extract implements Extractor. Only the header section is read.
func (e *MailExtractor) Extract(ctx context.Context, item *model.Item, r io.ReadSeeker) (*graph.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fragment := graph.NewFragment(item.ID)
	msg, err := mail.ReadMessage(r)
	if errors.Is(err, io.EOF) {
		return fragment, nil
	}
	if err != nil {
		return nil, malformed("failed to parse message %s: %v", item.ID, err)
	}

	fragment.Add(graph.PredicateTitle, decodeHeader(msg.Header.Get("Subject")))
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		fragment.Add(graph.PredicateAuthor, from.Name)
		fragment.Add(graph.PredicateEmail, strings.ToLower(from.Address))
	}
	if to, err := msg.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			fragment.Add("recipient", strings.ToLower(addr.Address))
		}
	}
	if date, err := msg.Header.Date(); err == nil {
		fragment.Add(graph.PredicateCreated, date.UTC().Format(time.RFC3339))
	}
	fragment.Add("messageId", strings.Trim(msg.Header.Get("Message-Id"), "<>"))
	return fragment, nil
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value on failure.
func decodeHeader(v string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}
