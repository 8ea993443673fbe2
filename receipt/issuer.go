package receipt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/tenderapi"
)

// Attester produces Nitro attestation documents. *enclave.NitroEnclaveHandle satisfies it.
type Attester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

// NitroAttester returns the NSM handle, or an error outside an enclave.
func NitroAttester() (Attester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// Issuer signs ranking receipts.
type Issuer struct {
	keys     *KeyManager
	attester Attester
	logger   *zap.Logger
	now      func() time.Time
}

// NewIssuer creates an Issuer. attester may be nil, in which case receipts carry no attestation.
func NewIssuer(keys *KeyManager, attester Attester, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		keys:     keys,
		attester: attester,
		logger:   logger,
		now:      time.Now,
	}
}

// Keys returns the signing key manager.
func (i *Issuer) Keys() *KeyManager {
	return i.keys
}

// Issue builds and signs a receipt for one ranking run. bids are all bids submitted to the
// run, including those the eligibility filter excluded.
func (i *Issuer) Issue(tenderID string, bids []core.Bid, prefs core.PreferenceVector, result *core.TenderResult) (tenderapi.ReceiptCOSE, *Payload, error) {
	if result == nil {
		return nil, nil, fmt.Errorf("nil tender result")
	}

	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}
	prefsNonce, err := generateNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate preferences nonce: %w", err)
	}
	rankingNonce, err := generateNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ranking nonce: %w", err)
	}

	bidHashes := make([]string, 0, len(bids))
	for _, bid := range bids {
		bidHashes = append(bidHashes, core.ComputeBidHash(bid, bidHashNonce))
	}

	payload := &Payload{
		ReceiptID:        uuid.NewString(),
		TenderID:         tenderID,
		BidHashes:        bidHashes,
		BidHashNonce:     bidHashNonce,
		PreferencesHash:  core.ComputePreferencesHash(prefs, prefsNonce),
		PreferencesNonce: prefsNonce,
		RankingHash:      core.ComputeRankingHash(result.Ranking, rankingNonce),
		RankingNonce:     rankingNonce,
		Winner:           stripSupplier(result.Winner),
		RunnerUp:         stripSupplier(result.RunnerUp),
		ExcludedBids:     result.ExcludedBids,
		IssuedAtMillis:   i.now().UnixMilli(),
	}

	if i.attester != nil {
		doc, err := i.attester.Attest(enclave.AttestationOptions{
			UserData: []byte(payload.RankingHash),
			Nonce:    []byte(payload.ReceiptID),
		})
		if err != nil {
			i.logger.Error("NSM attestation failed", zap.String("tender_id", tenderID), zap.Error(err))
			return nil, nil, fmt.Errorf("NSM attestation failed: %w", err)
		}
		payload.Attestation = doc
	}

	signed, err := i.sign(payload)
	if err != nil {
		return nil, nil, err
	}

	i.logger.Info("receipt issued",
		zap.String("receipt_id", payload.ReceiptID),
		zap.String("tender_id", tenderID),
		zap.Int("bids", len(bids)),
		zap.Bool("attested", payload.Attestation != nil),
		zap.Int("bytes", len(signed)))
	return signed, payload, nil
}

func (i *Issuer) sign(payload *Payload) (tenderapi.ReceiptCOSE, error) {
	body, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt payload: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, i.keys.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := &cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm: cose.AlgorithmES384,
			},
		},
		Payload: body,
	}
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	out, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return tenderapi.ReceiptCOSE(out), nil
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 32) // 256 bits of entropy
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("entropy generation failed: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
