package receipt

import (
	"github.com/cloudx-io/opentender/core"
)

// RankedEntry is a ranked bid as it appears in a receipt, without the supplier identity.
type RankedEntry struct {
	BidID string  `cbor:"bid_id" json:"bid_id"`
	Price string  `cbor:"price" json:"price"`
	Score float64 `cbor:"score" json:"score"`
	Rank  int     `cbor:"rank" json:"rank"`
}

// Payload is the CBOR body signed into a receipt.
type Payload struct {
	ReceiptID        string             `cbor:"receipt_id" json:"receipt_id"`
	TenderID         string             `cbor:"tender_id" json:"tender_id"`
	BidHashes        []string           `cbor:"bid_hashes" json:"bid_hashes"`
	BidHashNonce     string             `cbor:"bid_hash_nonce" json:"bid_hash_nonce"`
	PreferencesHash  string             `cbor:"preferences_hash" json:"preferences_hash"`
	PreferencesNonce string             `cbor:"preferences_nonce" json:"preferences_nonce"`
	RankingHash      string             `cbor:"ranking_hash" json:"ranking_hash"`
	RankingNonce     string             `cbor:"ranking_nonce" json:"ranking_nonce"`
	Winner           *RankedEntry       `cbor:"winner,omitempty" json:"winner,omitempty"`
	RunnerUp         *RankedEntry       `cbor:"runner_up,omitempty" json:"runner_up,omitempty"`
	ExcludedBids     []core.ExcludedBid `cbor:"excluded_bids,omitempty" json:"excluded_bids,omitempty"`
	IssuedAtMillis   int64              `cbor:"issued_at" json:"issued_at"`

	// Attestation is the raw NSM attestation document over RankingHash, when available.
	Attestation []byte `cbor:"attestation,omitempty" json:"attestation,omitempty"`
}

// stripSupplier converts a ScoredBid to a RankedEntry, removing the supplier identity.
func stripSupplier(bid *core.ScoredBid) *RankedEntry {
	if bid == nil {
		return nil
	}
	return &RankedEntry{
		BidID: bid.ID,
		Price: bid.Price.StringFixed(4),
		Score: bid.Score,
		Rank:  bid.Rank,
	}
}
