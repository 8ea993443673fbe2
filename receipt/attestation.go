package receipt

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/opentender/tenderapi"
	"github.com/cloudx-io/opentender/tenderapi/parsing"
)

// awsNitroRootCA is the root certificate for AWS Nitro Enclaves
// Valid until 2049-10-28, P-384 self-signed certificate
// Source: https://docs.aws.amazon.com/enclaves/latest/user/verify-root.html
const awsNitroRootCA = `-----BEGIN CERTIFICATE-----
MIICETCCAZagAwIBAgIRAPkxdWgbkK/hHUbMtOTn+FYwCgYIKoZIzj0EAwMwSTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoMBkFtYXpvbjEMMAoGA1UECwwDQVdTMRswGQYD
VQQDDBJhd3Mubml0cm8tZW5jbGF2ZXMwHhcNMTkxMDI4MTMyODA1WhcNNDkxMDI4
MTQyODA1WjBJMQswCQYDVQQGEwJVUzEPMA0GA1UECgwGQW1hem9uMQwwCgYDVQQL
DANBV1MxGzAZBgNVBAMMEmF3cy5uaXRyby1lbmNsYXZlczB2MBAGByqGSM49AgEG
BSuBBAAiA2IABPwCVOumCMHzaHDimtqQvkY4MpJzbolL//Zy2YlES1BR5TSksfbb
48C8WBoyt7F2Bw7eEtaaP+ohG2bnUs990d0JX28TcPQXCEPZ3BABIeTPYwEoCWZE
h8l5YoQwTcU/9KNCMEAwDwYDVR0TAQH/BAUwAwEB/zAdBgNVHQ4EFgQUkCW1DdkF
R+eWw5b6cp3PmanfS5YwDgYDVR0PAQH/BAQDAgGGMAoGCCqGSM49BAMDA2kAMGYC
MQCjfy+Rocm9Xue4YnwWmNJVA44fA0P5W2OpYow9OYCVRaEevL8uO1XYru5xtMPW
rfMCMQCi85sWBbJwKKXdS6BptQFuZbT73o/gBh1qUxl/nNr12UO8Yfwr6wPLb+6N
IwLz3/Y=
-----END CERTIFICATE-----`

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // repo commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}

// AttestationResult holds the outcome of checking a receipt's embedded attestation.
type AttestationResult struct {
	PCRsValid        bool
	CertificateValid bool
	SignatureValid   bool
	UserDataValid    bool
	Details          []string
}

// IsValid returns true if every attestation check passed.
func (r *AttestationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.UserDataValid
}

// LoadPCRsFromFile loads known PCR sets from a JSON file
func LoadPCRsFromFile(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCR config file: %w", err)
	}

	var config PCRConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse PCR config: %w", err)
	}

	if len(config.PCRSets) == 0 {
		return nil, fmt.Errorf("no PCR sets found in config file")
	}

	return config.PCRSets, nil
}

// ValidatePCRs checks if PCRs match any known valid set
// Returns: (match bool, matched set index)
// If no match, returns (false, -1)
func ValidatePCRs(pcrs tenderapi.PCRs, knownSets []PCRSet) (bool, int) {
	for i, knownSet := range knownSets {
		if pcrs.ImageFileHash == knownSet.PCR0 &&
			pcrs.KernelHash == knownSet.PCR1 &&
			pcrs.ApplicationHash == knownSet.PCR2 {
			return true, i
		}
	}
	return false, -1
}

// ValidateAttestation checks an NSM attestation document embedded in a receipt: PCRs against
// knownPCRs, the certificate chain to the AWS Nitro root at the attestation time, the
// document signature, and that the attested user data is the receipt's ranking hash.
func ValidateAttestation(doc []byte, rankingHash string, knownPCRs []PCRSet) (*AttestationResult, error) {
	attestation, err := parsing.ParseNitroAttestation(doc)
	if err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}

	result := &AttestationResult{}

	pcrMatch, matchedSet := ValidatePCRs(attestation.PCRs, knownPCRs)
	result.PCRsValid = pcrMatch
	if !pcrMatch {
		result.Details = append(result.Details, fmt.Sprintf("PCR0: %s (no match)", attestation.PCRs.ImageFileHash))
		result.Details = append(result.Details, fmt.Sprintf("PCR1: %s (no match)", attestation.PCRs.KernelHash))
		result.Details = append(result.Details, fmt.Sprintf("PCR2: %s (no match)", attestation.PCRs.ApplicationHash))
	} else {
		result.Details = append(result.Details, fmt.Sprintf("PCR measurements valid (set #%d, commit: %s)",
			matchedSet, knownPCRs[matchedSet].CommitHash))
	}

	switch {
	case attestation.Certificate == "":
		result.Details = append(result.Details, "Missing certificate")
	case len(attestation.CABundle) == 0:
		result.Details = append(result.Details, "Missing CA bundle")
	default:
		if err := ValidateCertificateChain(attestation.Certificate, attestation.CABundle, attestation.Timestamp); err != nil {
			result.Details = append(result.Details, fmt.Sprintf("Certificate chain validation failed: %v", err))
		} else {
			result.CertificateValid = true
			result.Details = append(result.Details, "Certificate chain verified")
		}
	}

	if err := verifyNitroSignature(doc, attestation.Certificate); err != nil {
		result.Details = append(result.Details, fmt.Sprintf("Attestation signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.Details = append(result.Details, "Attestation signature verified")
	}

	if string(attestation.UserData) == rankingHash {
		result.UserDataValid = true
		result.Details = append(result.Details, "Attestation binds the ranking hash")
	} else {
		result.Details = append(result.Details, "Attestation user data does not match the ranking hash")
	}

	return result, nil
}

// ValidateCertificateChain verifies the certificate chain using the AWS Nitro root CA at time at.
func ValidateCertificateChain(certB64 string, caBundleB64 []string, at time.Time) error {
	cert, err := parseCertificateB64(certB64)
	if err != nil {
		return err
	}

	intermediates := x509.NewCertPool()
	for _, caB64 := range caBundleB64 {
		caCert, err := parseCertificateB64(caB64)
		if err != nil {
			return fmt.Errorf("CA bundle: %w", err)
		}
		intermediates.AddCert(caCert)
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM([]byte(awsNitroRootCA)) {
		return fmt.Errorf("failed to parse AWS Nitro root CA")
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate chain validation failed: %w", err)
	}
	return nil
}

func parseCertificateB64(certB64 string) (*x509.Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}

// verifyNitroSignature checks the ES384 signature of an untagged NSM COSE_Sign1 document
// against the leaf certificate's key.
func verifyNitroSignature(doc []byte, certB64 string) error {
	cert, err := parseCertificateB64(certB64)
	if err != nil {
		return err
	}
	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	msg, err := parsing.DecodeSign1(doc)
	if err != nil {
		return err
	}
	sigStructure, err := msg.SigStructure()
	if err != nil {
		return err
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(sigStructure, msg.Signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}
	return nil
}
