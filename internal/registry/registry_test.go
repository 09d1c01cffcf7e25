package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"mint-candles/internal/graph"
)

func newDirectoryServer(t *testing.T, mints map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")

		var nodes []string
		if strings.Contains(req.Query, "GetMintByAddress") {
			addr, _ := req.Variables["mint"].(string)
			if fee, ok := mints[addr]; ok {
				nodes = append(nodes, `{"mint":"`+addr+`","tokenName":"Token","tokenSymbol":"TOK","feeRate":`+fee+`}`)
			}
		} else {
			for addr, fee := range mints {
				nodes = append(nodes, `{"mint":"`+addr+`","tokenName":"Token","tokenSymbol":"TOK","feeRate":`+fee+`}`)
			}
		}
		w.Write([]byte(`{"data":{"allInitializeTokenEventEntities":{"nodes":[` + strings.Join(nodes, ",") + `]}}}`))
	}))
}

func TestGraphDirectory_Resolve(t *testing.T) {
	server := newDirectoryServer(t, map[string]string{"M1": "1000"})
	defer server.Close()

	dir := NewGraphDirectory(graph.NewClient(server.URL))

	// Address is trimmed before lookup.
	mint, err := dir.Resolve(context.Background(), "  M1  ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mint.Address != "M1" {
		t.Errorf("Expected address M1, got %s", mint.Address)
	}
	if !mint.FeeRate.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected fee rate 1000, got %s", mint.FeeRate)
	}
}

func TestGraphDirectory_ResolveNotFound(t *testing.T) {
	server := newDirectoryServer(t, nil)
	defer server.Close()

	dir := NewGraphDirectory(graph.NewClient(server.URL))

	_, err := dir.Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrMintNotFound) {
		t.Errorf("Expected ErrMintNotFound, got %v", err)
	}
}

func TestGraphDirectory_ListAll(t *testing.T) {
	server := newDirectoryServer(t, map[string]string{"M1": "1000", "M2": "0.5"})
	defer server.Close()

	dir := NewGraphDirectory(graph.NewClient(server.URL))

	mints, err := dir.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(mints) != 2 {
		t.Fatalf("Expected 2 mints, got %d", len(mints))
	}
}

func TestValidateAddress(t *testing.T) {
	// 32 one-bytes encodes to a 32-byte base58 pubkey.
	valid := "So11111111111111111111111111111111111111112"
	if err := ValidateAddress(valid); err != nil {
		t.Errorf("Expected %q to validate, got %v", valid, err)
	}

	for _, addr := range []string{"", "0OIl", "abc"} {
		if err := ValidateAddress(addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Expected ErrInvalidAddress for %q, got %v", addr, err)
		}
	}
}
