package ledger

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
)

// ownerLength is the byte length of an Arweave RSA-4096 modulus.
const ownerLength = 512

// ErrInvalidWallet is returned for key files that are not usable Arweave
// RSA-4096 JWKs.
var ErrInvalidWallet = errors.New("invalid wallet")

type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
}

// Signer signs data items with an Arweave wallet key.
type Signer struct {
	key   *rsa.PrivateKey
	owner []byte
}

// LoadWallet reads an Arweave JWK key file.
func LoadWallet(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wallet: %w", err)
	}
	return ParseWallet(data)
}

// ParseWallet decodes an Arweave JWK.
func ParseWallet(data []byte) (*Signer, error) {
	var k jwk
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWallet, err)
	}
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: kty %q", ErrInvalidWallet, k.Kty)
	}

	fields := map[string]string{"n": k.N, "e": k.E, "d": k.D, "p": k.P, "q": k.Q}
	nums := make(map[string]*big.Int, len(fields))
	for name, v := range fields {
		if v == "" {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidWallet, name)
		}
		b, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidWallet, name, err)
		}
		nums[name] = new(big.Int).SetBytes(b)
	}
	if !nums["e"].IsInt64() {
		return nil, fmt.Errorf("%w: exponent too large", ErrInvalidWallet)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: nums["n"], E: int(nums["e"].Int64())},
		D:         nums["d"],
		Primes:    []*big.Int{nums["p"], nums["q"]},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWallet, err)
	}
	key.Precompute()
	return NewSigner(key)
}

// NewSigner wraps an RSA-4096 private key.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil || (key.N.BitLen()+7)/8 != ownerLength {
		return nil, fmt.Errorf("%w: key must be RSA-4096", ErrInvalidWallet)
	}
	owner := make([]byte, ownerLength)
	key.N.FillBytes(owner)
	return &Signer{key: key, owner: owner}, nil
}

// Owner returns the public modulus as it appears in a data item.
func (s *Signer) Owner() []byte {
	out := make([]byte, len(s.owner))
	copy(out, s.owner)
	return out
}

// Address returns the wallet address derived from the owner.
func (s *Signer) Address() string {
	sum := sha256.Sum256(s.owner)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *Signer) sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: 32})
}

func verify(owner, message, signature []byte) error {
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(owner), E: 65537}
	digest := sha256.Sum256(message)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{SaltLength: 32})
}
