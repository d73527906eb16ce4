// Package signing produces the digital signature over canonical receipt
// bytes using the operator-held RSA private key.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// AlgorithmRSAPKCS1v15SHA256 is the process-wide signing scheme identifier,
// recorded with every receipt so a verifier can select the matching
// algorithm. PKCS1v15 over RSA is deterministic by construction: a fixed key
// and fixed input always yield the same signature bytes.
const AlgorithmRSAPKCS1v15SHA256 = "rsa-pkcs1v15-sha256"

var (
	// ErrKeyLoad is wrapped into errors returned when key material is
	// malformed or unreadable.
	ErrKeyLoad = errors.New("signing key unavailable")
	// ErrSigning is wrapped into errors returned on cryptographic failure.
	ErrSigning = errors.New("signing failed")
)

// RSASigner signs canonical bytes with RSA PKCS1v15-SHA256.
// It is safe for concurrent use.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner parses PEM-encoded private key material. Both PKCS#1 and
// PKCS#8 encodings are accepted.
func NewRSASigner(pemData []byte) (*RSASigner, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyLoad)
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyLoad, err)
	}
	return &RSASigner{key: key}, nil
}

// NewRSASignerFromFile loads and parses a PEM private key from disk.
func NewRSASignerFromFile(path string) (*RSASigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrKeyLoad, path, err)
	}
	return NewRSASigner(data)
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T, want RSA", parsed)
	}
	return key, nil
}

// Algorithm returns the fixed signing scheme identifier.
func (s *RSASigner) Algorithm() string {
	return AlgorithmRSAPKCS1v15SHA256
}

// Sign computes the hex-encoded PKCS1v15-SHA256 signature over canonical.
func (s *RSASigner) Sign(canonical []byte) (string, error) {
	digest := sha256.Sum256(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return hex.EncodeToString(sig), nil
}

// PublicKeyPEM returns the PEM-encoded public key counterpart, suitable for
// handing to a verifier deployment.
func (s *RSASigner) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ErrVerification is returned when a signature does not match the canonical
// bytes under the given public key.
var ErrVerification = errors.New("signature verification failed")

// Verify checks a hex-encoded PKCS1v15-SHA256 signature against canonical
// bytes using a PEM-encoded public key.
func Verify(publicKeyPEM, canonical []byte, signatureHex string) error {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return fmt.Errorf("%w: no PEM block found", ErrKeyLoad)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("%w: parse public key: %v", ErrKeyLoad, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: unsupported key type %T, want RSA", ErrKeyLoad, parsed)
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrVerification, err)
	}
	digest := sha256.Sum256(canonical)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return nil
}

// GenerateKeyPEM creates a fresh RSA private key of the given bit size and
// returns it PKCS#8 PEM-encoded. Used by tooling that provisions signing keys.
func GenerateKeyPEM(bits int) ([]byte, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("key size %d too small, want at least 2048 bits", bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
