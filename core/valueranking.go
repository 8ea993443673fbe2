package core

import (
	"cmp"
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

// ScoreTieEpsilon is the absolute score difference below which two bids are
// considered tied and ordered by price instead.
const ScoreTieEpsilon = 0.001

// neutralScore is given to every applicable bid when all applicable values of a dimension are equal.
const neutralScore = 0.5

// DimensionRange holds the bounds of one scoring dimension over the applicable bids.
type DimensionRange struct {
	Min     float64
	Max     float64
	Present bool
}

func (r DimensionRange) uniform() bool {
	return r.Max == r.Min
}

func (r *DimensionRange) include(v float64) {
	if !r.Present {
		r.Min, r.Max, r.Present = v, v, true
		return
	}
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// priceApplies reports whether the bid's price takes part in price normalisation.
func priceApplies(b *Bid) bool {
	return b.Price.IsPositive()
}

func deliveryApplies(b *Bid) bool {
	return b.DeliveryDays.Valid && b.DeliveryDays.Value > 0
}

// warrantyApplies accepts 0 months; only absent or negative warranties are skipped.
func warrantyApplies(b *Bid) bool {
	return b.WarrantyMonths.Valid && b.WarrantyMonths.Value >= 0
}

func qualityApplies(b *Bid) bool {
	return b.QualityScore.Valid && b.QualityScore.Value > 0
}

// ComputeSubScores normalises every dimension across the bid set and returns
// the per-bid breakdown in input order.
func ComputeSubScores(bids []Bid) []SubScores {
	out := make([]SubScores, len(bids))
	if len(bids) == 0 {
		return out
	}

	var (
		minPrice, maxPrice       decimal.Decimal
		hasPrice                 bool
		delivery, warranty, qual DimensionRange
	)
	for i := range bids {
		b := &bids[i]
		if priceApplies(b) {
			if !hasPrice {
				minPrice, maxPrice, hasPrice = b.Price, b.Price, true
			} else {
				minPrice = decimal.Min(minPrice, b.Price)
				maxPrice = decimal.Max(maxPrice, b.Price)
			}
		}
		if deliveryApplies(b) {
			delivery.include(float64(b.DeliveryDays.Value))
		}
		if warrantyApplies(b) {
			warranty.include(float64(b.WarrantyMonths.Value))
		}
		if qualityApplies(b) {
			qual.include(float64(b.QualityScore.Value))
		}
	}

	priceSpread := maxPrice.Sub(minPrice)
	for i := range bids {
		b := &bids[i]
		s := &out[i]

		if hasPrice && priceApplies(b) {
			if priceSpread.IsZero() {
				s.Price = neutralScore
			} else {
				// Lower price is better
				s.Price = maxPrice.Sub(b.Price).Div(priceSpread).InexactFloat64()
			}
		}
		if deliveryApplies(b) {
			s.Delivery = lowerIsBetter(delivery, float64(b.DeliveryDays.Value))
		}
		if warrantyApplies(b) {
			s.Warranty = higherIsBetter(warranty, float64(b.WarrantyMonths.Value))
		}
		if qualityApplies(b) {
			s.Quality = higherIsBetter(qual, float64(b.QualityScore.Value))
		}
	}

	return out
}

func lowerIsBetter(r DimensionRange, v float64) float64 {
	if r.uniform() {
		return neutralScore
	}
	return clampUnit((r.Max - v) / (r.Max - r.Min))
}

func higherIsBetter(r DimensionRange, v float64) float64 {
	if r.uniform() {
		return neutralScore
	}
	return clampUnit((v - r.Min) / (r.Max - r.Min))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// CompositeScore combines the sub-scores using the raw priorities as weights.
// Returns 0 when the priorities sum to 0. The result is clamped to [0,1], which
// only has an effect when some priority is negative.
func CompositeScore(s SubScores, prefs PreferenceVector) float64 {
	total := prefs.Total()
	if total == 0 {
		return 0
	}
	weighted := s.Price*float64(prefs.PricePriority) +
		s.Delivery*float64(prefs.DeliveryPriority) +
		s.Warranty*float64(prefs.WarrantyPriority) +
		s.Quality*float64(prefs.QualityPriority)
	return clampUnit(weighted / float64(total))
}

// RankBidsByValue scores every bid against the whole set and returns them in rank order.
//
// Ordering: composite score descending; scores closer than ScoreTieEpsilon are
// treated as equal and ordered by price ascending, then by input position.
// Ranks are 1..N with no gaps or duplicates. The input slice is not modified.
func RankBidsByValue(bids []Bid, prefs PreferenceVector) []ScoredBid {
	if len(bids) == 0 {
		return []ScoredBid{}
	}

	subScores := ComputeSubScores(bids)

	type entry struct {
		index int
		bid   ScoredBid
	}
	entries := make([]entry, len(bids))
	for i := range bids {
		entries[i] = entry{
			index: i,
			bid: ScoredBid{
				Bid:       bids[i],
				Score:     CompositeScore(subScores[i], prefs),
				SubScores: subScores[i],
			},
		}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		if math.Abs(a.bid.Score-b.bid.Score) >= ScoreTieEpsilon {
			// Higher score first
			return cmp.Compare(b.bid.Score, a.bid.Score)
		}
		if c := a.bid.Price.Cmp(b.bid.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	ranked := make([]ScoredBid, len(entries))
	for i, e := range entries {
		ranked[i] = e.bid
		ranked[i].Rank = i + 1
	}

	return ranked
}
