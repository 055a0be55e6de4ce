package crawler

import (
	"sync"

	"github.com/nao1215/deltacrawl/internal/model"
)

// Sink receives the lifecycle notifications of a crawl run.
//
// Notifications are delivered one at a time, in the order the engine
// produces them. An item whose extraction failed still receives its
// visited and classification notifications, followed by ItemError.
type Sink interface {
	// ItemVisited is called for every enumerated item before classification is reported.
	ItemVisited(item *model.Item)

	// ItemNew is called for an item without a previous record.
	ItemNew(item *model.Item)

	// ItemChanged is called for an item whose marker changed.
	ItemChanged(item *model.Item)

	// ItemUnchanged is called for an item whose marker is unchanged.
	ItemUnchanged(item *model.Item)

	// ItemDeleted is called for every previously recorded identifier that a
	// complete run did not visit.
	ItemDeleted(id string)

	// ItemError is called for every per-item failure.
	ItemError(err *model.ItemError)

	// RunFinished is called once with the finalized report.
	RunFinished(report *model.CrawlReport)
}

// NopSink ignores every notification.
type NopSink struct{}

// Ensure NopSink implements Sink.
var _ Sink = NopSink{}

func (NopSink) ItemVisited(*model.Item) {}
func (NopSink) ItemNew(*model.Item) {}
func (NopSink) ItemChanged(*model.Item) {}
func (NopSink) ItemUnchanged(*model.Item) {}
func (NopSink) ItemDeleted(string) {}
func (NopSink) ItemError(*model.ItemError) {}
func (NopSink) RunFinished(*model.CrawlReport) {}

// MultiSink fans notifications out to several sinks in order.
type MultiSink []Sink

// Ensure MultiSink implements Sink.
var _ Sink = MultiSink(nil)

// ItemVisited implements Sink.
func (m MultiSink) ItemVisited(item *model.Item) {
	for _, s := range m {
		s.ItemVisited(item)
	}
}

// ItemNew implements Sink.
func (m MultiSink) ItemNew(item *model.Item) {
	for _, s := range m {
		s.ItemNew(item)
	}
}

// ItemChanged implements Sink.
func (m MultiSink) ItemChanged(item *model.Item) {
	for _, s := range m {
		s.ItemChanged(item)
	}
}

// ItemUnchanged implements Sink.
func (m MultiSink) ItemUnchanged(item *model.Item) {
	for _, s := range m {
		s.ItemUnchanged(item)
	}
}

// ItemDeleted implements Sink.
func (m MultiSink) ItemDeleted(id string) {
	for _, s := range m {
		s.ItemDeleted(id)
	}
}

// ItemError implements Sink.
func (m MultiSink) ItemError(err *model.ItemError) {
	for _, s := range m {
		s.ItemError(err)
	}
}

// RunFinished implements Sink.
func (m MultiSink) RunFinished(report *model.CrawlReport) {
	for _, s := range m {
		s.RunFinished(report)
	}
}

// serialSink delivers notifications from the coordinator and the extraction
// workers one at a time.
type serialSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *serialSink) classified(item *model.Item, c model.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.ItemVisited(item)
	switch c {
	case model.ClassNew:
		s.sink.ItemNew(item)
	case model.ClassChanged:
		s.sink.ItemChanged(item)
	case model.ClassUnchanged:
		s.sink.ItemUnchanged(item)
	}
}

func (s *serialSink) deleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.ItemDeleted(id)
}

func (s *serialSink) itemError(err *model.ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.ItemError(err)
}

func (s *serialSink) finished(report *model.CrawlReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.RunFinished(report)
}
