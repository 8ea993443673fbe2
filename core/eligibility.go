package core

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 4 // 4 decimal places for tender prices (0.0001 precision)

// Exclusion reasons reported in ExcludedBid.Reason.
const (
	ReasonInvalidPrice = "invalid_price"
	ReasonMissingID    = "missing_id"
)

// PriceIsPositive returns true if the price is still positive after rounding to monetaryPrecision.
func PriceIsPositive(price decimal.Decimal) bool {
	return price.Round(monetaryPrecision).IsPositive()
}

// FilterEligibleBids splits bids into those that can be ranked and those that cannot.
// Input order is preserved in the eligible slice.
func FilterEligibleBids(bids []Bid) (eligible []Bid, excluded []ExcludedBid) {
	eligible = make([]Bid, 0, len(bids))
	excluded = make([]ExcludedBid, 0)

	for _, bid := range bids {
		switch {
		case bid.ID == "":
			excluded = append(excluded, ExcludedBid{BidID: bid.ID, Reason: ReasonMissingID})
		case !PriceIsPositive(bid.Price):
			excluded = append(excluded, ExcludedBid{BidID: bid.ID, Reason: ReasonInvalidPrice})
		default:
			eligible = append(eligible, bid)
		}
	}

	return eligible, excluded
}
