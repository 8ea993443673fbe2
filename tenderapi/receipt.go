package tenderapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// ReceiptCOSE holds the raw COSE_Sign1 bytes of a signed ranking receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a ReceiptCOSE encoded for JSON transport.
// Both standard and unpadded URL-safe encodings are accepted by Decode.
type ReceiptCOSEBase64 string

// ReceiptCOSEGzip is a gzip-compressed, URL-safe base64 ReceiptCOSE for links and query strings.
type ReceiptCOSEGzip string

// EncodeBase64 encodes the receipt with standard base64.
func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// EncodeURLSafe encodes the receipt with unpadded URL-safe base64.
func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.RawURLEncoding.EncodeToString(r))
}

// CompressGzip gzips the receipt and encodes it with unpadded URL-safe base64.
func (r ReceiptCOSE) CompressGzip() (ReceiptCOSEGzip, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(r); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return ReceiptCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// String returns the encoded form.
func (b ReceiptCOSEBase64) String() string {
	return string(b)
}

// Decode returns the raw receipt bytes.
func (b ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	if b == "" {
		return nil, fmt.Errorf("empty receipt")
	}
	if raw, err := base64.StdEncoding.DecodeString(string(b)); err == nil {
		return ReceiptCOSE(raw), nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode receipt base64: %w", err)
	}
	return ReceiptCOSE(raw), nil
}

// String returns the encoded form.
func (g ReceiptCOSEGzip) String() string {
	return string(g)
}

// Decompress reverses CompressGzip.
func (g ReceiptCOSEGzip) Decompress() (ReceiptCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode gzip base64: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return ReceiptCOSE(raw), nil
}
