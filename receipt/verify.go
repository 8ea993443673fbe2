package receipt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/opentender/tenderapi"
)

// ErrSignatureInvalid is returned when a receipt does not verify against the given key.
var ErrSignatureInvalid = errors.New("receipt signature invalid")

// Verify checks the COSE_Sign1 signature of a receipt and returns its decoded payload.
func Verify(receipt tenderapi.ReceiptCOSE, pub *ecdsa.PublicKey) (*Payload, error) {
	if pub == nil {
		return nil, fmt.Errorf("nil public key")
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(receipt); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, pub)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	var payload Payload
	if err := cbor.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("parse receipt payload: %w", err)
	}
	return &payload, nil
}
