package core

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestPriceIsPositive(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		expected bool
	}{
		{"regular price", "100.00", true},
		{"smallest representable", "0.0001", true},
		{"rounds up to precision", "0.00005", true},
		{"rounds down to zero", "0.00004", false},
		{"zero", "0", false},
		{"negative", "-1.50", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, PriceIsPositive(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestFilterEligibleBids(t *testing.T) {
	bids := []Bid{
		{ID: "ok1", Price: price("10")},
		{ID: "zero", Price: price("0")},
		{ID: "", Price: price("12")},
		{ID: "negative", Price: price("-4")},
		{ID: "ok2", Price: price("9.99")},
	}

	eligible, excluded := FilterEligibleBids(bids)

	check.Equal(t, []Bid{bids[0], bids[4]}, eligible)
	check.Equal(t, []ExcludedBid{
		{BidID: "zero", Reason: ReasonInvalidPrice},
		{BidID: "", Reason: ReasonMissingID},
		{BidID: "negative", Reason: ReasonInvalidPrice},
	}, excluded)
}

func TestFilterEligibleBids_Empty(t *testing.T) {
	eligible, excluded := FilterEligibleBids(nil)
	check.Equal(t, []Bid{}, eligible)
	check.Equal(t, []ExcludedBid{}, excluded)
}

func TestRunTender_NoBids(t *testing.T) {
	result := RunTender(nil, DefaultPreferences())

	assert.NotNil(t, result)
	check.Nil(t, result.Winner)
	check.Nil(t, result.RunnerUp)
	check.Equal(t, 0, len(result.Ranking))
}

func TestRunTender_WinnerAndRunnerUp(t *testing.T) {
	bids := []Bid{
		{ID: "bid_a", SupplierID: "supplier_a", Price: price("100"), DeliveryDays: Some(5), WarrantyMonths: Some(12), QualityScore: Some(4)},
		{ID: "bid_b", SupplierID: "supplier_b", Price: price("90"), DeliveryDays: Some(10), WarrantyMonths: Some(6), QualityScore: Some(3)},
		{ID: "bid_c", SupplierID: "supplier_c", Price: price("0")},
	}

	result := RunTender(bids, DefaultPreferences())

	assert.NotNil(t, result.Winner)
	assert.NotNil(t, result.RunnerUp)
	check.Equal(t, "bid_a", result.Winner.ID)
	check.Equal(t, 1, result.Winner.Rank)
	check.Equal(t, "bid_b", result.RunnerUp.ID)
	check.Equal(t, 2, result.RunnerUp.Rank)
	check.Equal(t, 2, len(result.Ranking))
	check.Equal(t, []ExcludedBid{{BidID: "bid_c", Reason: ReasonInvalidPrice}}, result.ExcludedBids)
}

func TestRunTender_ExcludedBidsDoNotAffectNormalisation(t *testing.T) {
	bids := []Bid{
		{ID: "bid_a", Price: price("100")},
		{ID: "bid_b", Price: price("200")},
		{ID: "bid_bad", Price: price("-1000")},
	}

	result := RunTender(bids, PreferenceVector{PricePriority: 1})

	check.Equal(t, 1.0, result.Ranking[0].SubScores.Price)
	check.Equal(t, 0.0, result.Ranking[1].SubScores.Price)
}

func TestRunTender_SingleBid(t *testing.T) {
	result := RunTender([]Bid{{ID: "only", Price: price("5")}}, DefaultPreferences())

	assert.NotNil(t, result.Winner)
	check.Equal(t, "only", result.Winner.ID)
	check.Nil(t, result.RunnerUp)
}

func TestCompetitiveView(t *testing.T) {
	ranking := RankBidsByValue([]Bid{
		{ID: "bid_a", SupplierID: "supplier_a", Price: price("100")},
		{ID: "bid_b", SupplierID: "supplier_b", Price: price("80")},
	}, DefaultPreferences())

	view := CompetitiveView(ranking, "supplier_a")

	assert.Equal(t, 2, len(view))
	check.Equal(t, 1, view[0].Rank)
	check.True(t, view[0].Price.Equal(price("80")))
	check.False(t, view[0].IsYours)
	check.Equal(t, 2, view[1].Rank)
	check.True(t, view[1].IsYours)
	check.Equal(t, ranking[1].Score, view[1].Score)
}

func TestCompetitiveView_NoSupplier(t *testing.T) {
	ranking := []ScoredBid{{Bid: Bid{ID: "x", SupplierID: ""}, Rank: 1}}

	view := CompetitiveView(ranking, "")

	check.False(t, view[0].IsYours)
}

func TestFindRanked(t *testing.T) {
	ranking := []ScoredBid{{Bid: Bid{ID: "x"}, Rank: 1}, {Bid: Bid{ID: "y"}, Rank: 2}}

	found := FindRanked(ranking, "y")
	assert.NotNil(t, found)
	check.Equal(t, 2, found.Rank)
	check.Nil(t, FindRanked(ranking, "z"))
}
