package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/tenderapi"
)

func main() {
	var (
		bidsPath     = flag.String("bids", "-", "JSON array of bids (file path, - for stdin)")
		prefsInput   = flag.String("preferences", "", "Preferences JSON (file path or inline JSON); defaults apply when omitted")
		outputFormat = flag.String("format", "text", "Output format: text or json")
	)
	flag.Parse()

	bids, err := readBids(*bidsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading bids: %v\n", err)
		os.Exit(2)
	}

	prefs := core.DefaultPreferences()
	if *prefsInput != "" {
		raw, err := os.ReadFile(*prefsInput)
		if err != nil {
			raw = []byte(*prefsInput)
		}
		prefs, err = tenderapi.ParsePreferences(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: malformed preferences, using defaults: %v\n", err)
		}
	}

	result := core.RunTender(bids, prefs)

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			os.Exit(2)
		}
		return
	}
	outputText(os.Stdout, result, prefs)
}

func readBids(path string) ([]core.Bid, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var bids []core.Bid
	if err := json.Unmarshal(data, &bids); err != nil {
		return nil, fmt.Errorf("parse bids: %w", err)
	}
	return bids, nil
}

func outputText(w io.Writer, result *core.TenderResult, prefs core.PreferenceVector) {
	fmt.Fprintf(w, "Preferences: price=%d delivery=%d warranty=%d quality=%d\n\n",
		prefs.PricePriority, prefs.DeliveryPriority, prefs.WarrantyPriority, prefs.QualityPriority)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tBID\tSUPPLIER\tPRICE\tSCORE\tS_PRICE\tS_DELIVERY\tS_WARRANTY\tS_QUALITY")
	for _, b := range result.Ranking {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			b.Rank, b.ID, b.SupplierID, b.Price.String(), b.Score,
			b.SubScores.Price, b.SubScores.Delivery, b.SubScores.Warranty, b.SubScores.Quality)
	}
	_ = tw.Flush()

	if len(result.ExcludedBids) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Excluded:")
		for _, ex := range result.ExcludedBids {
			fmt.Fprintf(w, "  %s (%s)\n", ex.BidID, ex.Reason)
		}
	}

	fmt.Fprintln(w)
	if result.Winner == nil {
		fmt.Fprintln(w, "No eligible bids")
		return
	}
	fmt.Fprintf(w, "Winner: %s (score %.4f)\n", result.Winner.ID, result.Winner.Score)
	if result.RunnerUp != nil {
		fmt.Fprintf(w, "Runner-up: %s (score %.4f)\n", result.RunnerUp.ID, result.RunnerUp.Score)
	}
}
