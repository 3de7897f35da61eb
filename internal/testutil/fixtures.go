package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// BinaryGammaMarket returns an active binary Gamma market whose outcome
// token ids derive from the condition id: <id>-yes and <id>-no.
func BinaryGammaMarket(conditionID, question string) GammaMarket {
	return GammaMarket{
		ID:           conditionID,
		ConditionID:  conditionID,
		Question:     question,
		Slug:         conditionID + "-slug",
		Active:       true,
		Outcomes:     `["Yes", "No"]`,
		ClobTokenIDs: fmt.Sprintf(`["%s-yes", "%s-no"]`, conditionID, conditionID),
	}
}

// CategoricalGammaMarket returns an active Gamma market with one outcome
// token per label: <id>-0, <id>-1, ...
func CategoricalGammaMarket(conditionID, question string, labels ...string) GammaMarket {
	outcomes := "["
	tokens := "["
	for i, label := range labels {
		if i > 0 {
			outcomes += ", "
			tokens += ", "
		}
		outcomes += fmt.Sprintf("%q", label)
		tokens += fmt.Sprintf("%q", fmt.Sprintf("%s-%d", conditionID, i))
	}
	outcomes += "]"
	tokens += "]"

	return GammaMarket{
		ID:           conditionID,
		ConditionID:  conditionID,
		Question:     question,
		Slug:         conditionID + "-slug",
		Active:       true,
		Outcomes:     outcomes,
		ClobTokenIDs: tokens,
	}
}

// OpenKalshiMarket returns an open Kalshi market with market-level cent
// quotes.
func OpenKalshiMarket(ticker, title string, yesAsk, noAsk int) KalshiMarket {
	return KalshiMarket{
		Ticker:      ticker,
		EventTicker: ticker + "-EV",
		Title:       title,
		Status:      "open",
		YesAsk:      yesAsk,
		NoAsk:       noAsk,
	}
}

// WriteRSAKey generates an RSA key, writes it PKCS#1 PEM-encoded under dir
// and returns the file path. Kalshi clients in tests sign with this key.
func WriteRSAKey(t *testing.T, dir string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	path := filepath.Join(dir, "kalshi.pem")
	if err := os.WriteFile(path, pemData, 0o600); err != nil {
		t.Fatalf("write rsa key: %v", err)
	}
	return path
}
