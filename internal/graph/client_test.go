package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_MintTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Variables["mint"] != "M1" {
			t.Errorf("Expected mint M1, got %v", req.Variables["mint"])
		}
		if req.Variables["offset"] != float64(0) || req.Variables["first"] != float64(2) {
			t.Errorf("Unexpected paging variables: %v", req.Variables)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"allMintTokenEntities":{"nodes":[
			{"timestamp":"200","mintSizeEpoch":"20.5","mintFee":"3","currentEra":1,"currentEpoch":5},
			{"timestamp":"100","mintSizeEpoch":"10","mintFee":"2","currentEra":1,"currentEpoch":4}
		]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	events, err := client.MintTransactions(context.Background(), "M1", 0, 2)
	if err != nil {
		t.Fatalf("MintTransactions failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Timestamp != "200" || events[0].MintSizeEpoch != "20.5" {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if events[1].CurrentEpoch != 4 {
		t.Errorf("Expected epoch 4, got %d", events[1].CurrentEpoch)
	}
}

func TestClient_MintByAddress_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"allInitializeTokenEventEntities":{"nodes":[],"totalCount":0}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	mint, err := client.MintByAddress(context.Background(), "missing")
	if err != nil {
		t.Fatalf("MintByAddress failed: %v", err)
	}
	if mint != nil {
		t.Errorf("Expected nil for unregistered mint, got %+v", mint)
	}
}

func TestClient_GraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.AllMints(context.Background())

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("Expected QueryError, got %v", err)
	}
	if len(qe.Messages) != 1 || qe.Messages[0] != "field not found" {
		t.Errorf("Unexpected messages: %v", qe.Messages)
	}
}

func TestClient_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.AllMints(context.Background()); err == nil {
		t.Fatal("Expected error for non-200 status")
	}
}
