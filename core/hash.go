package core

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeBidHash computes the hash committing a bid's identity and terms into a receipt.
// This is used by the receipt issuer (to generate hashes) and the validator (to verify hashes).
//
// Formula: SHA256(bid_id + "|" + price(4dp) + "|" + delivery + "|" + warranty + "|" + quality + "|" + nonce)
//
// Price is fixed to monetaryPrecision decimal places; absent optional fields are written as "-".
func ComputeBidHash(bid Bid, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		bid.ID,
		formatPrice(bid.Price),
		formatOptional(bid.DeliveryDays),
		formatOptional(bid.WarrantyMonths),
		formatOptional(bid.QualityScore),
		nonce,
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputePreferencesHash commits the preference vector used for a ranking.
//
// Formula: SHA256(nonce + "|" + price:delivery:warranty:quality)
func ComputePreferencesHash(prefs PreferenceVector, nonce string) string {
	data := fmt.Sprintf("%s|%d:%d:%d:%d", nonce,
		prefs.PricePriority, prefs.DeliveryPriority, prefs.WarrantyPriority, prefs.QualityPriority)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeRankingHash commits the final order and scores of a ranking.
//
// Formula: SHA256(nonce + "|" + rank:bid_id:score(6dp) + "|" + ...) in rank order.
func ComputeRankingHash(ranking []ScoredBid, nonce string) string {
	var sb strings.Builder
	sb.WriteString(nonce)
	for _, r := range ranking {
		fmt.Fprintf(&sb, "|%d:%s:%.6f", r.Rank, r.ID, r.Score)
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash)
}

func formatPrice(price decimal.Decimal) string {
	return price.StringFixed(monetaryPrecision)
}

func formatOptional(o OptionalInt) string {
	if !o.Valid {
		return "-"
	}
	return fmt.Sprintf("%d", o.Value)
}
