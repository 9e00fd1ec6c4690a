package google

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Signer signs the assertion's signing input.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// RSASigner signs with RSASSA-PKCS1-v1_5 over SHA-256 (RS256).
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner parses pemKey and returns a signer for it.
func NewRSASigner(pemKey string) (*RSASigner, error) {
	key, err := ParsePrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: key}, nil
}

// Sign returns the RS256 signature of data.
func (s *RSASigner) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}
	return sig, nil
}

// ParsePrivateKey decodes a PEM encoded RSA key in PKCS#8 or PKCS#1 form.
// Literal "\n" sequences, as found in keys stored in environment variables,
// are turned into newlines first.
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")

	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", key)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
