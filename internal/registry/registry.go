// Package registry resolves mint addresses against the upstream registrar.
// Mint records are created on chain and are read-only here.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"mint-candles/internal/domain"
	"mint-candles/internal/graph"
)

// ErrMintNotFound is returned when an address has no upstream registration.
var ErrMintNotFound = errors.New("mint not found")

// ErrInvalidAddress is returned when an address is not a valid base58 pubkey.
var ErrInvalidAddress = errors.New("invalid mint address")

// MintDirectory resolves mint addresses and lists known mints.
type MintDirectory interface {
	// Resolve looks up a mint by address. Returns ErrMintNotFound when the
	// address has no registration; transport failures propagate as-is.
	Resolve(ctx context.Context, address string) (*domain.Mint, error)

	// ListAll returns every known mint. Order is unspecified.
	ListAll(ctx context.Context) ([]*domain.Mint, error)
}

// ValidateAddress checks that an address decodes to a 32-byte base58 pubkey.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decoded to %d bytes, want 32", ErrInvalidAddress, len(raw))
	}
	return nil
}

// GraphDirectory implements MintDirectory against the GraphQL indexer.
type GraphDirectory struct {
	client *graph.Client
}

// NewGraphDirectory creates a directory backed by the given client.
func NewGraphDirectory(client *graph.Client) *GraphDirectory {
	return &GraphDirectory{client: client}
}

// Compile-time interface check.
var _ MintDirectory = (*GraphDirectory)(nil)

// Resolve looks up a mint by address, trimming surrounding whitespace first.
func (d *GraphDirectory) Resolve(ctx context.Context, address string) (*domain.Mint, error) {
	address = strings.TrimSpace(address)

	entity, err := d.client.MintByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, address)
	}

	return mintFromEntity(entity)
}

// ListAll returns every mint registered upstream.
func (d *GraphDirectory) ListAll(ctx context.Context) ([]*domain.Mint, error) {
	entities, err := d.client.AllMints(ctx)
	if err != nil {
		return nil, err
	}

	mints := make([]*domain.Mint, 0, len(entities))
	for i := range entities {
		mint, err := mintFromEntity(&entities[i])
		if err != nil {
			return nil, err
		}
		mints = append(mints, mint)
	}
	return mints, nil
}

// mintFromEntity converts an upstream registration into a domain mint.
// A missing fee rate defaults to zero.
func mintFromEntity(entity *graph.InitializeTokenEventEntity) (*domain.Mint, error) {
	feeRate := decimal.Zero
	if entity.FeeRate != "" {
		var err error
		feeRate, err = decimal.NewFromString(entity.FeeRate.String())
		if err != nil {
			return nil, fmt.Errorf("parse fee rate %q for mint %s: %w", entity.FeeRate, entity.Mint, err)
		}
	}

	return &domain.Mint{
		Address: entity.Mint,
		Name:    entity.TokenName,
		Symbol:  entity.TokenSymbol,
		FeeRate: feeRate,
	}, nil
}
