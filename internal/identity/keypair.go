package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mr-tron/base58"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
)

// Keypair is an ed25519 signing key together with its public identity.
type Keypair struct {
	private ed25519.PrivateKey
	public  Identity
}

// GenerateKeypair creates a fresh keypair from crypto/rand.
func GenerateKeypair() (*Keypair, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, ferrors.InternalError("generate keypair").WithCause(err).Build()
	}
	kp := &Keypair{private: priv}
	copy(kp.public[:], pub)
	return kp, nil
}

// KeypairFromSecret rebuilds a keypair from its 64-byte secret key.
func KeypairFromSecret(secret []byte) (*Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, ferrors.ValidationError("invalid secret key length").
			WithContext("length", len(secret)).
			Build()
	}
	priv := ed25519.PrivateKey(append([]byte(nil), secret...))
	kp := &Keypair{private: priv}
	copy(kp.public[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}

// KeypairFromBase58 rebuilds a keypair from a base58-encoded secret key.
func KeypairFromBase58(s string) (*Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, ferrors.ValidationError("invalid base58 secret key").WithCause(err).Build()
	}
	return KeypairFromSecret(raw)
}

// Identity returns the public identity of the keypair.
func (k *Keypair) Identity() Identity {
	return k.public
}

// Sign signs msg with the private key.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Prove signs msg and packages the result as a Proof.
func (k *Keypair) Prove(msg []byte) Proof {
	return Proof{Signer: k.public, Signature: k.Sign(msg)}
}

// SecretBase58 returns the 64-byte secret key in base58.
func (k *Keypair) SecretBase58() string {
	return base58.Encode(k.private)
}

// SaveFile writes the keypair as a JSON array of the 64 secret key bytes,
// the layout used by common wallet tooling.
func (k *Keypair) SaveFile(path string) error {
	ints := make([]int, len(k.private))
	for i, b := range k.private {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return ferrors.InternalError("encode keypair").WithCause(err).Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.NewError(ferrors.CategoryRuntime, "write keypair file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}

// LoadKeypairFile reads a keypair written by SaveFile.
func LoadKeypairFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.ConfigError("read keypair file").WithCause(err).WithContext("path", path).Build()
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, ferrors.ConfigError("parse keypair file").WithCause(err).WithContext("path", path).Build()
	}
	secret := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, ferrors.ConfigError(fmt.Sprintf("keypair byte %d out of range", i)).
				WithContext("path", path).
				Build()
		}
		secret[i] = byte(v)
	}
	return KeypairFromSecret(secret)
}
