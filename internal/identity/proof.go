package identity

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// Proof is a signature produced by Signer over an operation message.
type Proof struct {
	Signer    Identity
	Signature []byte
}

// IsEmpty reports whether the proof carries no signature.
func (p Proof) IsEmpty() bool {
	return len(p.Signature) == 0
}

// SignatureBase58 returns the signature in base58.
func (p Proof) SignatureBase58() string {
	return base58.Encode(p.Signature)
}

// DecodeSignature decodes a base58 signature.
func DecodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	sig, err := base58.Decode(s)
	if err != nil {
		return nil, ErrInvalidIdentity.WithCause(err).WithContext("field", "signature")
	}
	return sig, nil
}

// Verifier checks that a signature over msg was produced by id.
type Verifier interface {
	Verify(id Identity, msg, sig []byte) bool
}

// Ed25519Verifier verifies proofs with ed25519 public keys.
type Ed25519Verifier struct{}

// Verify implements Verifier.
func (Ed25519Verifier) Verify(id Identity, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig)
}

// VerifyProof reports whether p is a valid signature over msg.
func VerifyProof(v Verifier, p Proof, msg []byte) bool {
	if p.IsEmpty() || p.Signer.IsZero() {
		return false
	}
	return v.Verify(p.Signer, msg, p.Signature)
}
