// Package parsing decodes the attestation documents a Nitro Security Module embeds in
// ranking receipts.
package parsing

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/opentender/tenderapi"
)

// Sign1 is an untagged COSE_Sign1 message as produced by the NSM.
type Sign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected cbor.RawMessage
	Payload     []byte
	Signature   []byte
}

// DecodeSign1 decodes a four element COSE_Sign1 array. The signature is not checked.
func DecodeSign1(doc []byte) (*Sign1, error) {
	var msg Sign1
	if err := cbor.Unmarshal(doc, &msg); err != nil {
		return nil, fmt.Errorf("decode COSE_Sign1: %w", err)
	}
	if len(msg.Payload) == 0 {
		return nil, errors.New("decode COSE_Sign1: empty payload")
	}
	return &msg, nil
}

// SigStructure returns the bytes the signature covers: ["Signature1", protected, h'', payload].
func (m *Sign1) SigStructure() ([]byte, error) {
	out, err := cbor.Marshal([]any{"Signature1", m.Protected, []byte{}, m.Payload})
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return out, nil
}

type nsmDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"`
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"`
	Nonce       []byte            `cbor:"nonce"`
}

// Registers the enclave reports; missing ones stay empty.
func (d *nsmDocument) pcrs() tenderapi.PCRs {
	return tenderapi.PCRs{
		ImageFileHash:   hex.EncodeToString(d.PCRs[0]),
		KernelHash:      hex.EncodeToString(d.PCRs[1]),
		ApplicationHash: hex.EncodeToString(d.PCRs[2]),
		IAMRoleHash:     hex.EncodeToString(d.PCRs[3]),
		InstanceIDHash:  hex.EncodeToString(d.PCRs[4]),
		SigningCertHash: hex.EncodeToString(d.PCRs[8]),
	}
}

// ParseNitroAttestation decodes the NSM attestation document carried by doc.
// The signature is not verified here.
func ParseNitroAttestation(doc []byte) (*tenderapi.AttestationDoc, error) {
	msg, err := DecodeSign1(doc)
	if err != nil {
		return nil, err
	}

	var nsm nsmDocument
	if err := cbor.Unmarshal(msg.Payload, &nsm); err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}

	bundle := make([]string, len(nsm.CABundle))
	for i, der := range nsm.CABundle {
		bundle[i] = base64.StdEncoding.EncodeToString(der)
	}

	return &tenderapi.AttestationDoc{
		ModuleID:        nsm.ModuleID,
		Timestamp:       time.UnixMilli(int64(nsm.Timestamp)).UTC(),
		DigestAlgorithm: nsm.Digest,
		PCRs:            nsm.pcrs(),
		Certificate:     base64.StdEncoding.EncodeToString(nsm.Certificate),
		CABundle:        bundle,
		PublicKey:       base64.StdEncoding.EncodeToString(nsm.PublicKey),
		UserData:        nsm.UserData,
		Nonce:           string(nsm.Nonce),
	}, nil
}
