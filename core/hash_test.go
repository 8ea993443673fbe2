package core

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBidHash(t *testing.T) {
	bid := Bid{
		ID:             "bid_123",
		Price:          decimal.RequireFromString("2.50"),
		DeliveryDays:   Some(7),
		WarrantyMonths: Some(0),
	}
	nonce := "test_nonce_456"

	hash := ComputeBidHash(bid, nonce)

	// Verify hash is 64 characters (SHA256 hex encoding)
	if len(hash) != 64 {
		t.Errorf("ComputeBidHash() hash length = %d, want 64", len(hash))
	}

	// Same inputs should produce same hash (deterministic)
	if hash != ComputeBidHash(bid, nonce) {
		t.Errorf("ComputeBidHash() not deterministic")
	}

	// Verify exact hash calculation
	expectedData := "bid_123|2.5000|7|0|-|test_nonce_456"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeBidHash() = %v, want %v", hash, expectedHash)
	}
}

func TestComputeBidHash_PriceFormatting(t *testing.T) {
	nonce := "test"

	// Same value at 4 decimal places produces the same hash
	hash1 := ComputeBidHash(Bid{ID: "bid-1", Price: decimal.RequireFromString("2.1")}, nonce)
	hash2 := ComputeBidHash(Bid{ID: "bid-1", Price: decimal.RequireFromString("2.1000")}, nonce)
	if hash1 != hash2 {
		t.Errorf("Prices equal to 4 decimal places should produce same hash")
	}

	hash3 := ComputeBidHash(Bid{ID: "bid-1", Price: decimal.RequireFromString("2.1001")}, nonce)
	if hash1 == hash3 {
		t.Errorf("Prices with different 4th decimal should produce different hashes")
	}
}

func TestComputeBidHash_AbsentVersusZero(t *testing.T) {
	nonce := "n"
	absent := ComputeBidHash(Bid{ID: "b", Price: decimal.NewFromInt(10)}, nonce)
	zero := ComputeBidHash(Bid{ID: "b", Price: decimal.NewFromInt(10), WarrantyMonths: Some(0)}, nonce)
	if absent == zero {
		t.Errorf("absent warranty and zero warranty must hash differently")
	}
}

func TestComputeBidHash_DifferentInputs(t *testing.T) {
	nonce := "test-nonce"
	base := Bid{ID: "bid-1", Price: decimal.NewFromInt(100), QualityScore: Some(4)}

	variants := []Bid{
		{ID: "bid-2", Price: decimal.NewFromInt(100), QualityScore: Some(4)},
		{ID: "bid-1", Price: decimal.NewFromInt(101), QualityScore: Some(4)},
		{ID: "bid-1", Price: decimal.NewFromInt(100), QualityScore: Some(5)},
	}
	baseHash := ComputeBidHash(base, nonce)
	for _, v := range variants {
		if ComputeBidHash(v, nonce) == baseHash {
			t.Errorf("bid %+v should not hash like %+v", v, base)
		}
	}

	if ComputeBidHash(base, "other-nonce") == baseHash {
		t.Errorf("Different nonces should produce different hashes")
	}
}

func TestComputePreferencesHash(t *testing.T) {
	nonce := "pref-nonce"
	prefs := DefaultPreferences()

	hash := ComputePreferencesHash(prefs, nonce)

	expectedData := "pref-nonce|4:3:3:3"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputePreferencesHash() = %v, want %v", hash, expectedHash)
	}

	swapped := PreferenceVector{PricePriority: 3, DeliveryPriority: 4, WarrantyPriority: 3, QualityPriority: 3}
	if ComputePreferencesHash(swapped, nonce) == hash {
		t.Errorf("Priority order must be part of the hash")
	}
}

func TestComputeRankingHash(t *testing.T) {
	nonce := "rank-nonce"
	ranking := []ScoredBid{
		{Bid: Bid{ID: "a"}, Score: 0.75, Rank: 1},
		{Bid: Bid{ID: "b"}, Score: 0.25, Rank: 2},
	}

	hash := ComputeRankingHash(ranking, nonce)

	expectedData := "rank-nonce|1:a:0.750000|2:b:0.250000"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if hash != expectedHash {
		t.Errorf("ComputeRankingHash() = %v, want %v", hash, expectedHash)
	}

	reordered := []ScoredBid{
		{Bid: Bid{ID: "b"}, Score: 0.25, Rank: 1},
		{Bid: Bid{ID: "a"}, Score: 0.75, Rank: 2},
	}
	if ComputeRankingHash(reordered, nonce) == hash {
		t.Errorf("Different orders should produce different hashes")
	}
}

func TestComputeRankingHash_Empty(t *testing.T) {
	hash := ComputeRankingHash(nil, "n")
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("n")))
	if hash != expectedHash {
		t.Errorf("ComputeRankingHash(nil) = %v, want %v", hash, expectedHash)
	}
}
