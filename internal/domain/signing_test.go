package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestSignAndVerifyAgreement(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil { t.Fatalf("GenerateKey: %v", err) }
	maker := hex.EncodeToString(pub)
	agreementID := strings.Repeat("ab", 32)
	arbiter := "arb_1"

	sig, err := SignAgreement(priv, agreementID, arbiter)
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	if err := VerifyMakerSignature(maker, agreementID, arbiter, sig); err != nil { t.Fatalf("VerifyMakerSignature: %v", err) }
	// Case differences in key and identity normalize away.
	if err := VerifyMakerSignature(strings.ToUpper(maker), strings.ToUpper(agreementID), arbiter, sig); err != nil { t.Fatalf("case-normalized verify: %v", err) }
}

// Binding the arbiter into the digest stops a signature from being replayed
// under a different arbiter assignment.
func TestSignatureBoundToArbiter(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil { t.Fatalf("GenerateKey: %v", err) }
	maker := hex.EncodeToString(pub)
	agreementID := strings.Repeat("cd", 32)

	sig, err := SignAgreement(priv, agreementID, "arb_1")
	if err != nil { t.Fatalf("SignAgreement: %v", err) }
	if err := VerifyMakerSignature(maker, agreementID, "arb_2", sig); !errors.Is(err, ErrInvalidSignature) { t.Fatalf("expected ErrInvalidSignature for swapped arbiter, got %v", err) }
}

func TestVerifyRejectsMalformedInputs(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil { t.Fatalf("GenerateKey: %v", err) }
	maker := hex.EncodeToString(pub)
	agreementID := strings.Repeat("ef", 32)
	sig, err := SignAgreement(priv, agreementID, "arb_1")
	if err != nil { t.Fatalf("SignAgreement: %v", err) }

	if err := VerifyMakerSignature("not-hex", agreementID, "arb_1", sig); !errors.Is(err, ErrInvalidSignature) { t.Fatalf("bad key: %v", err) }
	if err := VerifyMakerSignature(maker, agreementID, "arb_1", "zz"); !errors.Is(err, ErrInvalidSignature) { t.Fatalf("bad signature hex: %v", err) }
	if err := VerifyMakerSignature(maker, agreementID, "arb_1", hex.EncodeToString(make([]byte, 10))); !errors.Is(err, ErrInvalidSignature) { t.Fatalf("short signature: %v", err) }
	other, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil { t.Fatalf("GenerateKey: %v", err) }
	if err := VerifyMakerSignature(hex.EncodeToString(other), agreementID, "arb_1", sig); !errors.Is(err, ErrInvalidSignature) { t.Fatalf("wrong key: %v", err) }
}
