package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Signer produces the authentication headers Kalshi requires on every
// request: an RSA PKCS#1 v1.5 signature over timestamp+method+path+body.
type Signer struct {
	apiKey string
	key    *rsa.PrivateKey
}

// NewSigner loads signing credentials. pemOrPath is either a path to a PEM
// file or the PEM text itself (detected by the -----BEGIN prefix).
// A load failure here is fatal for the process.
func NewSigner(apiKey, pemOrPath string) (*Signer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("kalshi api key cannot be empty")
	}
	if pemOrPath == "" {
		return nil, fmt.Errorf("kalshi private key cannot be empty")
	}

	var pemData []byte
	if strings.HasPrefix(strings.TrimSpace(pemOrPath), "-----BEGIN") {
		pemData = []byte(pemOrPath)
	} else {
		data, err := os.ReadFile(pemOrPath)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		pemData = data
	}

	key, err := parseRSAPrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Signer{apiKey: apiKey, key: key}, nil
}

// parseRSAPrivateKey accepts PKCS#1 and PKCS#8 encoded RSA keys.
func parseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("not a PKCS#1 or PKCS#8 key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}

	return key, nil
}

// Headers returns signed headers for one request attempt. A fresh
// millisecond timestamp is generated per call and the same value is used
// in the signed message and the timestamp header, so retries are always
// re-signed.
func (s *Signer) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	signature, err := s.sign(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.apiKey,
		"KALSHI-ACCESS-SIGNATURE": signature,
		"KALSHI-ACCESS-TIMESTAMP": timestamp,
		"Content-Type":            "application/json",
	}, nil
}

// sign computes base64(RSA-PKCS1v15-SHA256(timestamp || method || path || body)).
// path is signed exactly as sent, query string included.
func (s *Signer) sign(timestamp, method, path, body string) (string, error) {
	msg := timestamp + method + path + body
	digest := sha256.Sum256([]byte(msg))

	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}
