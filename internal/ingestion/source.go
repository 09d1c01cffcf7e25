package ingestion

import (
	"context"

	"mint-candles/internal/graph"
)

// PageEvent is one mint transaction as reported by the upstream indexer.
// Numeric fields arrive as strings and are parsed at ingestion time.
type PageEvent struct {
	Timestamp string
	MintSize  string
	MintFee   string
	Era       int64
	Epoch     int64
}

// Source provides pages of mint transactions, newest first.
// Offset-based pagination: a page shorter than limit means the end was reached.
type Source interface {
	FetchPage(ctx context.Context, mint string, offset, limit int) ([]PageEvent, error)
}

// GraphSource fetches transaction pages from a GraphQL indexer.
type GraphSource struct {
	client *graph.Client
}

// NewGraphSource creates a Source backed by the given GraphQL client.
func NewGraphSource(client *graph.Client) *GraphSource {
	return &GraphSource{client: client}
}

var _ Source = (*GraphSource)(nil)

// FetchPage returns one page of transactions for a mint, newest first.
func (s *GraphSource) FetchPage(ctx context.Context, mint string, offset, limit int) ([]PageEvent, error) {
	entities, err := s.client.MintTransactions(ctx, mint, offset, limit)
	if err != nil {
		return nil, err
	}

	events := make([]PageEvent, 0, len(entities))
	for _, e := range entities {
		events = append(events, PageEvent{
			Timestamp: e.Timestamp,
			MintSize:  e.MintSizeEpoch,
			MintFee:   e.MintFee,
			Era:       e.CurrentEra,
			Epoch:     e.CurrentEpoch,
		})
	}
	return events, nil
}
