// Package stub provides an in-memory ingestion source for testing.
package stub

import (
	"context"

	"mint-candles/internal/ingestion"
)

// Source serves fixed pages of mint events from memory.
// Events must be provided newest first, matching the upstream ordering.
type Source struct {
	events map[string][]ingestion.PageEvent

	// Pages counts FetchPage calls, for asserting pagination behaviour.
	Pages int
}

// NewSource creates a stub source with events keyed by mint address.
func NewSource(events map[string][]ingestion.PageEvent) *Source {
	if events == nil {
		events = map[string][]ingestion.PageEvent{}
	}
	return &Source{events: events}
}

var _ ingestion.Source = (*Source)(nil)

// FetchPage returns the slice of events at [offset, offset+limit).
func (s *Source) FetchPage(_ context.Context, mint string, offset, limit int) ([]ingestion.PageEvent, error) {
	s.Pages++
	all := s.events[mint]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	page := make([]ingestion.PageEvent, end-offset)
	copy(page, all[offset:end])
	return page, nil
}

// Add prepends an event, keeping newest-first ordering.
func (s *Source) Add(mint string, event ingestion.PageEvent) {
	s.events[mint] = append([]ingestion.PageEvent{event}, s.events[mint]...)
}
