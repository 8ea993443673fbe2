package core

import (
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func checkScore(t *testing.T, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("score = %.12f, want %.12f", got, want)
	}
}

func rankedIDs(ranked []ScoredBid) []string {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	return ids
}

func checkStrictRanks(t *testing.T, ranked []ScoredBid) {
	t.Helper()
	for i, r := range ranked {
		check.Equal(t, i+1, r.Rank)
		check.True(t, r.Score >= 0 && r.Score <= 1)
		for _, s := range []float64{r.SubScores.Price, r.SubScores.Delivery, r.SubScores.Warranty, r.SubScores.Quality} {
			check.True(t, s >= 0 && s <= 1)
		}
	}
}

func TestRankBidsByValue_Empty(t *testing.T) {
	result := RankBidsByValue([]Bid{}, DefaultPreferences())
	check.NotNil(t, result)
	check.Equal(t, 0, len(result))

	result = RankBidsByValue(nil, DefaultPreferences())
	check.NotNil(t, result)
	check.Equal(t, 0, len(result))
}

func TestRankBidsByValue_SingleBid(t *testing.T) {
	bids := []Bid{{ID: "bid1", SupplierID: "supplier_a", Price: price("250.00")}}

	result := RankBidsByValue(bids, DefaultPreferences())

	assert.Equal(t, 1, len(result))
	check.Equal(t, 1, result[0].Rank)
	check.Equal(t, "bid1", result[0].ID)
	// A lone price is uniform across the set
	checkScore(t, 0.5, result[0].SubScores.Price)
	checkScore(t, 0.5*4/13, result[0].Score)
}

func TestRankBidsByValue_ScenarioFixture(t *testing.T) {
	bids := []Bid{
		{ID: "bid_a", SupplierID: "supplier_a", Price: price("100"), DeliveryDays: Some(5), WarrantyMonths: Some(12), QualityScore: Some(4)},
		{ID: "bid_b", SupplierID: "supplier_b", Price: price("90"), DeliveryDays: Some(10), WarrantyMonths: Some(6), QualityScore: Some(3)},
	}

	result := RankBidsByValue(bids, DefaultPreferences())

	assert.Equal(t, 2, len(result))
	checkStrictRanks(t, result)

	// bid_a wins every non-price dimension: (0*4 + 1*3 + 1*3 + 1*3) / 13
	check.Equal(t, "bid_a", result[0].ID)
	check.Equal(t, SubScores{Price: 0, Delivery: 1, Warranty: 1, Quality: 1}, result[0].SubScores)
	checkScore(t, 9.0/13.0, result[0].Score)

	// bid_b only wins on price: (1*4) / 13
	check.Equal(t, "bid_b", result[1].ID)
	check.Equal(t, SubScores{Price: 1, Delivery: 0, Warranty: 0, Quality: 0}, result[1].SubScores)
	checkScore(t, 4.0/13.0, result[1].Score)
}

func TestRankBidsByValue_PriceDominance(t *testing.T) {
	bids := []Bid{
		{ID: "bid_b", Price: price("200")},
		{ID: "bid_a", Price: price("100")},
	}

	result := RankBidsByValue(bids, DefaultPreferences())

	check.Equal(t, []string{"bid_a", "bid_b"}, rankedIDs(result))
	checkScore(t, 1, result[0].SubScores.Price)
	checkScore(t, 0, result[1].SubScores.Price)
	checkScore(t, 4.0/13.0, result[0].Score)
	checkScore(t, 0, result[1].Score)
}

func TestRankBidsByValue_DegenerateWeights(t *testing.T) {
	bids := []Bid{
		{ID: "bid1", Price: price("300"), DeliveryDays: Some(1), QualityScore: Some(5)},
		{ID: "bid2", Price: price("100"), DeliveryDays: Some(30), QualityScore: Some(1)},
		{ID: "bid3", Price: price("200"), WarrantyMonths: Some(24)},
		{ID: "bid4", Price: price("100")},
	}

	result := RankBidsByValue(bids, PreferenceVector{})

	checkStrictRanks(t, result)
	for _, r := range result {
		check.Equal(t, 0.0, r.Score)
	}
	// Ascending price, equal prices keep input order
	check.Equal(t, []string{"bid2", "bid4", "bid3", "bid1"}, rankedIDs(result))
}

func TestRankBidsByValue_LowerPriceWinsTies(t *testing.T) {
	bids := []Bid{
		{ID: "expensive", Price: price("120"), DeliveryDays: Some(7), WarrantyMonths: Some(12), QualityScore: Some(4)},
		{ID: "cheap", Price: price("110"), DeliveryDays: Some(7), WarrantyMonths: Some(12), QualityScore: Some(4)},
	}
	prefs := PreferenceVector{PricePriority: 0, DeliveryPriority: 3, WarrantyPriority: 3, QualityPriority: 3}

	result := RankBidsByValue(bids, prefs)

	check.Equal(t, []string{"cheap", "expensive"}, rankedIDs(result))
	checkScore(t, result[0].Score, result[1].Score)
}

func TestRankBidsByValue_NearTieUsesPrice(t *testing.T) {
	// Delivery range 1..2001: day 1 scores 1.0, day 2 scores 0.9995
	bids := []Bid{
		{ID: "fastest", Price: price("50"), DeliveryDays: Some(1)},
		{ID: "almost", Price: price("40"), DeliveryDays: Some(2)},
		{ID: "slow", Price: price("10"), DeliveryDays: Some(2001)},
	}
	prefs := PreferenceVector{DeliveryPriority: 1}

	result := RankBidsByValue(bids, prefs)

	checkStrictRanks(t, result)
	checkScore(t, 1, result[1].Score)
	checkScore(t, 0.9995, result[0].Score)
	check.Equal(t, []string{"almost", "fastest", "slow"}, rankedIDs(result))
}

func TestRankBidsByValue_IdenticalBidsKeepInputOrder(t *testing.T) {
	bids := []Bid{
		{ID: "first", Price: price("10"), QualityScore: Some(3)},
		{ID: "second", Price: price("10"), QualityScore: Some(3)},
		{ID: "third", Price: price("10"), QualityScore: Some(3)},
	}

	result := RankBidsByValue(bids, DefaultPreferences())

	checkStrictRanks(t, result)
	check.Equal(t, []string{"first", "second", "third"}, rankedIDs(result))
}

func TestRankBidsByValue_Deterministic(t *testing.T) {
	bids := []Bid{
		{ID: "a", Price: price("99.99"), DeliveryDays: Some(3), WarrantyMonths: Some(6)},
		{ID: "b", Price: price("89.50"), DeliveryDays: Some(14), QualityScore: Some(5)},
		{ID: "c", Price: price("89.50"), WarrantyMonths: Some(36), QualityScore: Some(2)},
		{ID: "d", Price: price("120.00"), DeliveryDays: Some(1), WarrantyMonths: Some(0), QualityScore: Some(4)},
	}
	prefs := PreferenceVector{PricePriority: 5, DeliveryPriority: 2, WarrantyPriority: 1, QualityPriority: 4}

	first := RankBidsByValue(bids, prefs)
	second := RankBidsByValue(bids, prefs)

	check.Equal(t, first, second)
	checkStrictRanks(t, first)
}

func TestRankBidsByValue_DoesNotMutateInput(t *testing.T) {
	bids := []Bid{
		{ID: "a", Price: price("300")},
		{ID: "b", Price: price("100")},
	}
	original := slices.Clone(bids)

	_ = RankBidsByValue(bids, DefaultPreferences())

	check.Equal(t, original, bids)
}

func TestRankBidsByValue_UniformWarranty(t *testing.T) {
	bids := []Bid{
		{ID: "a", Price: price("100"), WarrantyMonths: Some(12)},
		{ID: "b", Price: price("150"), WarrantyMonths: Some(12)},
		{ID: "c", Price: price("125"), WarrantyMonths: Some(12)},
	}

	result := RankBidsByValue(bids, DefaultPreferences())

	for _, r := range result {
		check.Equal(t, 0.5, r.SubScores.Warranty)
	}
}

func TestRankBidsByValue_NegativeWeightsStayInBounds(t *testing.T) {
	bids := []Bid{
		{ID: "a", Price: price("100"), DeliveryDays: Some(10)},
		{ID: "b", Price: price("200"), DeliveryDays: Some(5)},
	}
	prefs := PreferenceVector{PricePriority: -5, DeliveryPriority: 1}

	result := RankBidsByValue(bids, prefs)

	checkStrictRanks(t, result)
}

func TestComputeSubScores(t *testing.T) {
	tests := []struct {
		name     string
		bids     []Bid
		expected []SubScores
	}{
		{
			name:     "empty set",
			bids:     []Bid{},
			expected: []SubScores{},
		},
		{
			name: "missing dimension scores zero",
			bids: []Bid{
				{ID: "a", Price: price("10"), DeliveryDays: Some(2)},
				{ID: "b", Price: price("20"), DeliveryDays: Some(4)},
				{ID: "c", Price: price("30")},
			},
			expected: []SubScores{
				{Price: 1, Delivery: 1},
				{Price: 0.5, Delivery: 0},
				{Price: 0},
			},
		},
		{
			name: "zero warranty is a real value",
			bids: []Bid{
				{ID: "a", Price: price("10"), WarrantyMonths: Some(0)},
				{ID: "b", Price: price("10"), WarrantyMonths: Some(24)},
				{ID: "c", Price: price("10")},
			},
			expected: []SubScores{
				{Price: 0.5, Warranty: 0},
				{Price: 0.5, Warranty: 1},
				{Price: 0.5, Warranty: 0},
			},
		},
		{
			name: "uniform zero warranty is neutral",
			bids: []Bid{
				{ID: "a", Price: price("10"), WarrantyMonths: Some(0)},
				{ID: "b", Price: price("20"), WarrantyMonths: Some(0)},
			},
			expected: []SubScores{
				{Price: 1, Warranty: 0.5},
				{Price: 0, Warranty: 0.5},
			},
		},
		{
			name: "non-positive delivery and quality are skipped",
			bids: []Bid{
				{ID: "a", Price: price("10"), DeliveryDays: Some(0), QualityScore: Some(0)},
				{ID: "b", Price: price("10"), DeliveryDays: Some(-3), QualityScore: Some(-1)},
				{ID: "c", Price: price("10"), DeliveryDays: Some(6), QualityScore: Some(2)},
			},
			expected: []SubScores{
				{Price: 0.5},
				{Price: 0.5},
				{Price: 0.5, Delivery: 0.5, Quality: 0.5},
			},
		},
		{
			name: "negative warranty is skipped",
			bids: []Bid{
				{ID: "a", Price: price("10"), WarrantyMonths: Some(-1)},
				{ID: "b", Price: price("10"), WarrantyMonths: Some(6)},
			},
			expected: []SubScores{
				{Price: 0.5},
				{Price: 0.5, Warranty: 0.5},
			},
		},
		{
			name: "quality higher is better",
			bids: []Bid{
				{ID: "a", Price: price("10"), QualityScore: Some(1)},
				{ID: "b", Price: price("10"), QualityScore: Some(5)},
				{ID: "c", Price: price("10"), QualityScore: Some(3)},
			},
			expected: []SubScores{
				{Price: 0.5, Quality: 0},
				{Price: 0.5, Quality: 1},
				{Price: 0.5, Quality: 0.5},
			},
		},
		{
			name: "non-positive price scores zero on price",
			bids: []Bid{
				{ID: "a", Price: price("0")},
				{ID: "b", Price: price("40")},
				{ID: "c", Price: price("80")},
			},
			expected: []SubScores{
				{Price: 0},
				{Price: 1},
				{Price: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, ComputeSubScores(tt.bids))
		})
	}
}

func TestCompositeScore(t *testing.T) {
	tests := []struct {
		name     string
		scores   SubScores
		prefs    PreferenceVector
		expected float64
	}{
		{"all perfect", SubScores{1, 1, 1, 1}, DefaultPreferences(), 1},
		{"all zero", SubScores{}, DefaultPreferences(), 0},
		{"zero weights", SubScores{1, 1, 1, 1}, PreferenceVector{}, 0},
		{"price only", SubScores{Price: 1}, PreferenceVector{PricePriority: 5}, 1},
		{"weighted mean", SubScores{Price: 1, Quality: 0.5}, PreferenceVector{PricePriority: 1, QualityPriority: 1}, 0.75},
		{"negative total clamps", SubScores{Price: 1}, PreferenceVector{PricePriority: -5, DeliveryPriority: 1}, 1},
		{"weights above five", SubScores{Price: 1}, PreferenceVector{PricePriority: 10, DeliveryPriority: 10}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkScore(t, tt.expected, CompositeScore(tt.scores, tt.prefs))
		})
	}
}

func TestOptionalInt_JSON(t *testing.T) {
	var o OptionalInt
	assert.NoError(t, o.UnmarshalJSON([]byte("null")))
	check.False(t, o.Valid)

	assert.NoError(t, o.UnmarshalJSON([]byte("0")))
	check.Equal(t, Some(0), o)

	data, err := Some(12).MarshalJSON()
	assert.NoError(t, err)
	check.Equal(t, "12", string(data))

	data, err = OptionalInt{}.MarshalJSON()
	assert.NoError(t, err)
	check.Equal(t, "null", string(data))

	check.Error(t, o.UnmarshalJSON([]byte(`"twelve"`)))
}

func TestPreferenceVector_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected PreferenceVector
	}{
		{"partial keeps defaults", `{"pricePriority":5}`, PreferenceVector{PricePriority: 5, DeliveryPriority: 3, WarrantyPriority: 3, QualityPriority: 3}},
		{"empty object", `{}`, DefaultPreferences()},
		{"explicit zeros", `{"pricePriority":0,"deliveryPriority":0,"warrantyPriority":0,"qualityPriority":0}`, PreferenceVector{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PreferenceVector
			assert.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			check.Equal(t, tt.expected, p)
		})
	}

	var nested struct {
		Preferences *PreferenceVector `json:"preferences"`
	}
	assert.NoError(t, json.Unmarshal([]byte(`{"preferences":{"qualityPriority":1}}`), &nested))
	assert.NotNil(t, nested.Preferences)
	check.Equal(t, PreferenceVector{PricePriority: 4, DeliveryPriority: 3, WarrantyPriority: 3, QualityPriority: 1}, *nested.Preferences)

	var p PreferenceVector
	check.Error(t, json.Unmarshal([]byte(`{"pricePriority":"high"}`), &p))
}
