package domain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Party identities are lowercase hex ed25519 public keys, which lets the
// registry verify agreement signatures without any key distribution step.

type agreementTerms struct {
	AgreementID string `json:"agreement_id"`
	Arbiter     string `json:"arbiter"`
}

// AgreementDigest computes the canonical digest a maker signs to accept an
// engagement. Binding the arbiter into the digest prevents replaying the
// signature under a different arbiter assignment.
func AgreementDigest(agreementID, arbiter string) ([]byte, error) {
	payload, err := json.Marshal(agreementTerms{
		AgreementID: strings.ToLower(strings.TrimSpace(agreementID)),
		Arbiter:     strings.ToLower(strings.TrimSpace(arbiter)),
	})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(payload)
	return sum[:], nil
}

// SignAgreement produces the hex signature a maker submits to the client.
func SignAgreement(priv ed25519.PrivateKey, agreementID, arbiter string) (string, error) {
	digest, err := AgreementDigest(agreementID, arbiter)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(priv, digest)), nil
}

// VerifyMakerSignature checks that signature is a valid ed25519 signature by
// maker over the canonical digest of (agreementID, arbiter).
func VerifyMakerSignature(maker, agreementID, arbiter, signature string) error {
	pub, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(maker)))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	digest, err := AgreementDigest(agreementID, arbiter)
	if err != nil {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
		return ErrInvalidSignature
	}
	return nil
}
