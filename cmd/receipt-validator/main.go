package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/receipt"
	"github.com/cloudx-io/opentender/tenderapi"
)

func main() {
	var (
		receiptInput   = flag.String("receipt", "", "Receipt COSE bytes, base64 or gzip form (file path or inline)")
		publicKeyInput = flag.String("public-key", "", "Receipt signing public key PEM (file path or inline)")
		bidInput       = flag.String("bid", "", "Your bid JSON as submitted (file path or inline JSON)")
		prefsInput     = flag.String("preferences", "", "Tender preferences JSON (file path or inline JSON, optional)")
		pcrsPath       = flag.String("pcrs", "", "Known PCR sets JSON file; enables attestation checks (optional)")
		isWinner       = flag.Bool("winner", false, "Expect the bid to be the winner")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" || *bidInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt, --public-key and --bid are required\n")
		os.Exit(1)
	}

	input, err := buildValidationInput(*receiptInput, *publicKeyInput, *bidInput, *prefsInput, *pcrsPath, *isWinner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		os.Exit(2)
	}

	result, err := receipt.Validate(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Tender Ranking Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed ranking receipt and your bid's position in it.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <b64> --public-key <pem> --bid <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <b64>                   receipt_cose_base64 from a rank_response")
	fmt.Println("  --public-key <pem>                public_key from a key_response")
	fmt.Println("  --bid <json>                      your bid, e.g. {\"id\":\"...\",\"price\":\"90\",\"delivery_days\":10}")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --preferences <json>              tender preferences, e.g. {\"pricePriority\":4}")
	fmt.Println("  --pcrs <file>                     known PCR sets for enclave attestation checks")
	fmt.Println("  --winner                          expect the bid to have won")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	return []byte(input), nil
}

func buildValidationInput(receiptIn, publicKeyIn, bidIn, prefsIn, pcrsPath string, isWinner bool) (*receipt.ValidationInput, error) {
	receiptRaw, err := readInput(receiptIn)
	if err != nil {
		return nil, err
	}
	receiptB64, err := normalizeReceipt(strings.TrimSpace(string(receiptRaw)))
	if err != nil {
		return nil, err
	}

	publicKey, err := readInput(publicKeyIn)
	if err != nil {
		return nil, err
	}

	bidJSON, err := readInput(bidIn)
	if err != nil {
		return nil, err
	}
	var bid core.Bid
	if err := json.Unmarshal(bidJSON, &bid); err != nil {
		return nil, fmt.Errorf("parse bid: %w", err)
	}
	if bid.ID == "" {
		return nil, fmt.Errorf("bid id is required")
	}

	input := &receipt.ValidationInput{
		Receipt:      receiptB64,
		PublicKeyPEM: string(publicKey),
		Bid:          bid,
		IsWinner:     isWinner,
	}

	if prefsIn != "" {
		prefsJSON, err := readInput(prefsIn)
		if err != nil {
			return nil, err
		}
		prefs, err := tenderapi.ParsePreferences(prefsJSON)
		if err != nil {
			return nil, fmt.Errorf("parse preferences: %w", err)
		}
		input.Preferences = &prefs
	}

	if pcrsPath != "" {
		known, err := receipt.LoadPCRsFromFile(pcrsPath)
		if err != nil {
			return nil, err
		}
		input.KnownPCRs = known
	}

	return input, nil
}

// gzipBase64Prefix is how base64 renders the gzip magic bytes 1f 8b 08.
const gzipBase64Prefix = "H4sI"

// normalizeReceipt accepts either the base64 form or the gzip link form of a receipt.
func normalizeReceipt(s string) (tenderapi.ReceiptCOSEBase64, error) {
	if !strings.HasPrefix(s, gzipBase64Prefix) {
		return tenderapi.ReceiptCOSEBase64(s), nil
	}
	raw, err := tenderapi.ReceiptCOSEGzip(s).Decompress()
	if err != nil {
		return "", fmt.Errorf("decompress receipt: %w", err)
	}
	return raw.EncodeBase64(), nil
}

func outputText(result *receipt.ValidationResult) {
	fmt.Println("Tender Ranking Receipt Validator")
	fmt.Println("================================")
	fmt.Println()

	if result.Payload != nil {
		fmt.Printf("Receipt:  %s\n", result.Payload.ReceiptID)
		fmt.Printf("Tender:   %s\n", result.Payload.TenderID)
		fmt.Printf("Bids:     %d\n", len(result.Payload.BidHashes))
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Bid Hash Valid:          %v\n", result.BidHashValid)
	fmt.Printf("  Preferences Hash Valid:  %v\n", result.PreferencesHashValid)
	fmt.Printf("  Winner Valid:            %v\n", result.WinnerValid)
	if result.Attestation != nil {
		fmt.Printf("  PCRs Valid:              %v\n", result.Attestation.PCRsValid)
		fmt.Printf("  Certificate Valid:       %v\n", result.Attestation.CertificateValid)
		fmt.Printf("  Attestation Sig Valid:   %v\n", result.Attestation.SignatureValid)
		fmt.Printf("  Attested Ranking Valid:  %v\n", result.Attestation.UserDataValid)
	}

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("================================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
	}
}

func outputJSON(result *receipt.ValidationResult) {
	output := map[string]any{
		"valid":                  result.IsValid(),
		"signature_valid":        result.SignatureValid,
		"bid_hash_valid":         result.BidHashValid,
		"preferences_hash_valid": result.PreferencesHashValid,
		"winner_valid":           result.WinnerValid,
		"details":                result.ValidationDetails,
	}
	if result.Attestation != nil {
		output["attestation_valid"] = result.Attestation.IsValid()
	}
	if result.Payload != nil {
		output["receipt_id"] = result.Payload.ReceiptID
		output["tender_id"] = result.Payload.TenderID
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
