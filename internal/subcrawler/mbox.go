package subcrawler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/deltacrawl/internal/model"
)

// mboxSeparator starts every message of an mbox file.
var mboxSeparator = []byte("From ")

// Mbox splits mbox mailboxes into one child per message.
// Children are named "<n>.eml" by position; their marker is a content hash,
// so a message moved to another position reads as deleted and new.
type Mbox struct {
	settings
}

// Ensure Mbox implements SubCrawler.
var _ SubCrawler = (*Mbox)(nil)

// NewMbox creates an mbox sub-crawler.
func NewMbox(opts ...Option) *Mbox {
	return &Mbox{settings: newSettings(opts)}
}

// Name implements SubCrawler.
func (m *Mbox) Name() string {
	return "mbox"
}

// Supports implements SubCrawler.
func (m *Mbox) Supports(ct model.ContentType) bool {
	return ct == "application/mbox"
}

// Open implements SubCrawler. ">From " quoting is undone in message bodies.
func (m *Mbox) Open(ctx context.Context, parent *model.Item, r io.ReadSeeker) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		reader := bufio.NewReader(r)
		var msg bytes.Buffer
		n := 0
		started := false
		tooLarge := false

		flush := func() bool {
			if !started {
				return true
			}
			n++
			name := fmt.Sprintf("%d.eml", n)
			if tooLarge {
				return yield(nil, entryError(parent, name, fmt.Errorf("%w (%d bytes)", ErrEntryTooLarge, m.maxEntrySize)))
			}
			data := bytes.Clone(msg.Bytes())
			sum := sha3.Sum256(data)
			return yield(memoryChild(parent, name, data, hex.EncodeToString(sum[:16])), nil)
		}

		for {
			if ctx.Err() != nil {
				return
			}
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				switch {
				case bytes.HasPrefix(line, mboxSeparator):
					if !flush() {
						return
					}
					msg.Reset()
					started = true
					tooLarge = false
				case !started:
					yield(nil, containerError(parent, fmt.Errorf("mailbox does not start with a From line")))
					return
				case tooLarge:
				case int64(msg.Len()+len(line)) > m.maxEntrySize:
					tooLarge = true
				default:
					if bytes.HasPrefix(line, []byte(">From ")) {
						line = line[1:]
					}
					msg.Write(line)
				}
			}
			if errors.Is(err, io.EOF) {
				flush()
				return
			}
			if err != nil {
				yield(nil, containerError(parent, err))
				return
			}
		}
	}
}
