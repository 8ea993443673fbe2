package receipt

import (
	"errors"
	"fmt"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/tenderapi"
)

// ValidationInput contains everything a supplier needs to check a receipt.
type ValidationInput struct {
	Receipt      tenderapi.ReceiptCOSEBase64
	PublicKeyPEM string

	// Bid is the supplier's own bid exactly as submitted.
	Bid core.Bid

	// Preferences, when non-nil, must match the preferences hash in the receipt.
	Preferences *core.PreferenceVector

	// IsWinner is the expected outcome for Bid.
	IsWinner bool

	// KnownPCRs enables attestation checks. With no PCR sets an embedded attestation is
	// reported but not validated.
	KnownPCRs []PCRSet
}

// ValidationResult contains the outcome of every receipt check.
type ValidationResult struct {
	SignatureValid       bool
	BidHashValid         bool
	PreferencesHashValid bool
	WinnerValid          bool
	Attestation          *AttestationResult
	ValidationDetails    []string
	Payload              *Payload
}

// IsValid returns true if all checks passed. An attestation is only required to be valid
// when it was checked.
func (r *ValidationResult) IsValid() bool {
	if r.Attestation != nil && !r.Attestation.IsValid() {
		return false
	}
	return r.SignatureValid && r.BidHashValid && r.PreferencesHashValid && r.WinnerValid
}

// Validate verifies a receipt and a supplier's position in it:
// - Receipt signature verifies against the server key
// - Bid was included in the ranking
// - Preferences hash matches, when preferences are given
// - Winner determination matches the expectation
// - Embedded attestation, when known PCRs are given
//
// A bad signature is reported in the result. The error is reserved for inputs that cannot
// be checked at all.
func Validate(input *ValidationInput) (*ValidationResult, error) {
	raw, err := input.Receipt.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	pub, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	result := &ValidationResult{ValidationDetails: []string{}}

	payload, err := Verify(raw, pub)
	if err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt signature verification failed: %v", err))
			return result, nil
		}
		return nil, err
	}
	result.SignatureValid = true
	result.Payload = payload
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt signature verified (receipt %s)", payload.ReceiptID))

	result.BidHashValid = validateBidHash(input, payload, result)
	result.PreferencesHashValid = validatePreferencesHash(input, payload, result)
	result.WinnerValid = validateWinner(input, payload, result)

	switch {
	case len(payload.Attestation) == 0:
		result.ValidationDetails = append(result.ValidationDetails, "Receipt carries no enclave attestation")
	case len(input.KnownPCRs) == 0:
		result.ValidationDetails = append(result.ValidationDetails, "Receipt carries an enclave attestation; no PCR sets given, skipping")
	default:
		attestation, err := ValidateAttestation(payload.Attestation, payload.RankingHash, input.KnownPCRs)
		if err != nil {
			return nil, err
		}
		result.Attestation = attestation
		result.ValidationDetails = append(result.ValidationDetails, attestation.Details...)
	}

	return result, nil
}

func validateBidHash(input *ValidationInput, payload *Payload, result *ValidationResult) bool {
	if payload.BidHashNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Bid hash nonce missing from receipt")
		return false
	}

	computedHash := core.ComputeBidHash(input.Bid, payload.BidHashNonce)
	for _, hash := range payload.BidHashes {
		if hash == computedHash {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash found in receipt: %s", computedHash))
			return true
		}
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid hash NOT found in receipt. Computed: %s", computedHash))
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Total hashes in receipt: %d", len(payload.BidHashes)))
	return false
}

func validatePreferencesHash(input *ValidationInput, payload *Payload, result *ValidationResult) bool {
	if input.Preferences == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Preferences not provided, skipping preferences hash")
		return true
	}
	if payload.PreferencesNonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Preferences nonce missing from receipt")
		return false
	}

	computedHash := core.ComputePreferencesHash(*input.Preferences, payload.PreferencesNonce)
	if computedHash == payload.PreferencesHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Preferences hash validation passed: %s", computedHash))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Preferences hash mismatch: computed %s, receipt has %s", computedHash, payload.PreferencesHash))
	return false
}

func validateWinner(input *ValidationInput, payload *Payload, result *ValidationResult) bool {
	winner := payload.Winner
	actuallyWon := winner != nil && winner.BidID == input.Bid.ID

	if input.IsWinner == actuallyWon {
		if actuallyWon {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation passed: bid won as expected (price: %s, score: %.6f)", winner.Price, winner.Score))
		} else {
			result.ValidationDetails = append(result.ValidationDetails, "Winner validation passed: bid did not win, as expected")
		}
		return true
	}

	if input.IsWinner {
		result.ValidationDetails = append(result.ValidationDetails, "Winner validation failed: expected to win, but did not win")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation failed: expected not to win, but won with price %s", winner.Price))
	}
	return false
}
