package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/opentender/core"
)

func TestOutputText(t *testing.T) {
	bids := []core.Bid{
		{ID: "a", SupplierID: "s1", Price: decimal.NewFromInt(100), DeliveryDays: core.Some(5)},
		{ID: "b", SupplierID: "s2", Price: decimal.NewFromInt(90), DeliveryDays: core.Some(10)},
		{ID: "c", SupplierID: "s3", Price: decimal.Zero},
	}
	prefs := core.PreferenceVector{PricePriority: 5}

	var out bytes.Buffer
	outputText(&out, core.RunTender(bids, prefs), prefs)

	text := out.String()
	check.True(t, strings.Contains(text, "Winner: b (score 1.0000)"))
	check.True(t, strings.Contains(text, "Runner-up: a (score 0.0000)"))
	check.True(t, strings.Contains(text, "c (invalid_price)"))
}

func TestOutputText_NoBids(t *testing.T) {
	var out bytes.Buffer
	outputText(&out, core.RunTender(nil, core.DefaultPreferences()), core.DefaultPreferences())
	check.True(t, strings.Contains(out.String(), "No eligible bids"))
}
