package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OptionalInt is an integer field that may be absent.
// The zero value is absent, so "warranty not specified" and "warranty is 0 months" stay distinct.
type OptionalInt struct {
	Value int
	Valid bool
}

// Some returns a present OptionalInt holding v.
func Some(v int) OptionalInt {
	return OptionalInt{Value: v, Valid: true}
}

// MarshalJSON encodes an absent value as null.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON accepts null or an integer.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = OptionalInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("optional int: %w", err)
	}
	*o = Some(v)
	return nil
}

// Bid is one supplier's offer against a tender.
type Bid struct {
	ID             string          `json:"id"`
	SupplierID     string          `json:"supplier_id"`
	Price          decimal.Decimal `json:"price"`
	DeliveryDays   OptionalInt     `json:"delivery_days"`
	WarrantyMonths OptionalInt     `json:"warranty_months"`
	QualityScore   OptionalInt     `json:"quality_score"`
}

// PreferenceVector holds the buyer's relative importance for each scoring dimension.
// Priorities are nominally in [1,5] but are used as raw multipliers without validation.
type PreferenceVector struct {
	PricePriority    int `json:"pricePriority"`
	DeliveryPriority int `json:"deliveryPriority"`
	WarrantyPriority int `json:"warrantyPriority"`
	QualityPriority  int `json:"qualityPriority"`
}

// DefaultPreferences returns the preferences applied when a tender has none recorded.
func DefaultPreferences() PreferenceVector {
	return PreferenceVector{
		PricePriority:    4,
		DeliveryPriority: 3,
		WarrantyPriority: 3,
		QualityPriority:  3,
	}
}

// UnmarshalJSON starts from DefaultPreferences, so fields missing from the document keep
// their default priority and explicit zeros are kept.
func (p *PreferenceVector) UnmarshalJSON(data []byte) error {
	type plain PreferenceVector
	v := plain(DefaultPreferences())
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("preferences: %w", err)
	}
	*p = PreferenceVector(v)
	return nil
}

// Total returns the raw sum of all four priorities.
func (p PreferenceVector) Total() int {
	return p.PricePriority + p.DeliveryPriority + p.WarrantyPriority + p.QualityPriority
}

// SubScores is the per-dimension breakdown of a composite score. Each value lies in [0,1].
type SubScores struct {
	Price    float64 `json:"price"`
	Delivery float64 `json:"delivery"`
	Warranty float64 `json:"warranty"`
	Quality  float64 `json:"quality"`
}

// ScoredBid is a bid with its composite value score and 1-based rank.
type ScoredBid struct {
	Bid
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
	SubScores SubScores `json:"sub_scores"`
}

// TenderResult contains the complete results of ranking a tender's bids.
type TenderResult struct {
	// Winner is the rank 1 bid (nil if no eligible bids)
	Winner *ScoredBid `json:"winner,omitempty"`

	// RunnerUp is the rank 2 bid (nil if less than 2 eligible bids)
	RunnerUp *ScoredBid `json:"runner_up,omitempty"`

	// Ranking contains every eligible bid in rank order
	Ranking []ScoredBid `json:"ranking"`

	// ExcludedBids contains bids that failed the eligibility checks
	ExcludedBids []ExcludedBid `json:"excluded_bids,omitempty"`
}

// ExcludedBid represents a bid that was left out of the ranking.
type ExcludedBid struct {
	BidID  string `json:"bid_id"`
	Reason string `json:"reason"`
}

// CompetitiveBid is the anonymised leaderboard entry shown to a supplier.
type CompetitiveBid struct {
	Price   decimal.Decimal `json:"price"`
	Rank    int             `json:"rank"`
	Score   float64         `json:"score"`
	IsYours bool            `json:"is_yours"`
}
