package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// MintTokenEntity is one raw mint event as served by the indexer. Numeric
// values arrive string-encoded and are parsed by the ingestion engine.
type MintTokenEntity struct {
	Timestamp     string `json:"timestamp"`
	MintSizeEpoch string `json:"mintSizeEpoch"`
	MintFee       string `json:"mintFee"`
	CurrentEra    int64  `json:"currentEra"`
	CurrentEpoch  int64  `json:"currentEpoch"`
}

// InitializeTokenEventEntity is one mint registration record.
type InitializeTokenEventEntity struct {
	Mint        string      `json:"mint"`
	TokenName   string      `json:"tokenName"`
	TokenSymbol string      `json:"tokenSymbol"`
	FeeRate     json.Number `json:"feeRate"`
}

type mintTransactionsResponse struct {
	AllMintTokenEntities struct {
		Nodes []MintTokenEntity `json:"nodes"`
	} `json:"allMintTokenEntities"`
}

type mintListResponse struct {
	AllInitializeTokenEventEntities struct {
		Nodes      []InitializeTokenEventEntity `json:"nodes"`
		TotalCount int                          `json:"totalCount"`
	} `json:"allInitializeTokenEventEntities"`
}

// MintTransactions fetches one page of mint events, newest first.
// An empty page signals end of data.
func (c *Client) MintTransactions(ctx context.Context, mint string, offset, first int) ([]MintTokenEntity, error) {
	var resp mintTransactionsResponse
	err := c.Do(ctx, queryMintTransactions, map[string]any{
		"mint":   mint,
		"offset": offset,
		"first":  first,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch mint transactions: %w", err)
	}
	return resp.AllMintTokenEntities.Nodes, nil
}

// MintByAddress fetches a single mint registration. Returns nil when the
// mint is not registered upstream.
func (c *Client) MintByAddress(ctx context.Context, mint string) (*InitializeTokenEventEntity, error) {
	var resp mintListResponse
	err := c.Do(ctx, queryMintByAddress, map[string]any{"mint": mint}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch mint by address: %w", err)
	}
	nodes := resp.AllInitializeTokenEventEntities.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}
	entity := nodes[0]
	return &entity, nil
}

// AllMints fetches every mint registration.
func (c *Client) AllMints(ctx context.Context) ([]InitializeTokenEventEntity, error) {
	var resp mintListResponse
	if err := c.Do(ctx, queryAllMints, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch all mints: %w", err)
	}
	return resp.AllInitializeTokenEventEntities.Nodes, nil
}
