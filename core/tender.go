package core

// RunTender executes the tender ranking: eligibility filtering → value ranking → winner selection.
//
// Processing flow:
//  1. Drop bids without an ID or with a non-positive price
//  2. Rank the remaining bids with RankBidsByValue
//  3. Take rank 1 as winner and rank 2 as runner-up
func RunTender(bids []Bid, prefs PreferenceVector) *TenderResult {
	eligible, excluded := FilterEligibleBids(bids)

	ranking := RankBidsByValue(eligible, prefs)

	var winner, runnerUp *ScoredBid
	if len(ranking) > 0 {
		w := ranking[0]
		winner = &w
	}
	if len(ranking) > 1 {
		r := ranking[1]
		runnerUp = &r
	}

	return &TenderResult{
		Winner:       winner,
		RunnerUp:     runnerUp,
		Ranking:      ranking,
		ExcludedBids: excluded,
	}
}

// CompetitiveView strips supplier identity from a ranking, flagging only the entry
// submitted by supplierID.
func CompetitiveView(ranking []ScoredBid, supplierID string) []CompetitiveBid {
	view := make([]CompetitiveBid, len(ranking))
	for i, sb := range ranking {
		view[i] = CompetitiveBid{
			Price:   sb.Price,
			Rank:    sb.Rank,
			Score:   sb.Score,
			IsYours: supplierID != "" && sb.SupplierID == supplierID,
		}
	}
	return view
}

// FindRanked returns the ranked entry for bidID, or nil if the bid is not in the ranking.
func FindRanked(ranking []ScoredBid, bidID string) *ScoredBid {
	for i := range ranking {
		if ranking[i].ID == bidID {
			return &ranking[i]
		}
	}
	return nil
}
