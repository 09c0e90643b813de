// Package identity resolves and persists the daemon's and client's
// peer identity: a 32-byte ed25519 seed, its 64-hex-character string form,
// and the derived libp2p peer ID used to dial and authenticate peers.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// SeedSize is the length of the raw secret key material, both on disk and
// as the input to key derivation. It round-trips to 64 hex characters.
const SeedSize = ed25519.SeedSize // 32

// KeyPair is a peer's ed25519 identity, in the form libp2p expects.
type KeyPair struct {
	seed []byte
	priv p2pcrypto.PrivKey
	pub  p2pcrypto.PubKey
	id   peer.ID
}

// Generate creates a fresh random key pair.
func Generate() (*KeyPair, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed derives a key pair from a 32-byte seed.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("identity seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	edPriv := ed25519.NewKeyFromSeed(seed)
	priv, err := p2pcrypto.UnmarshalEd25519PrivateKey(edPriv)
	if err != nil {
		return nil, fmt.Errorf("unmarshal ed25519 key: %w", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	return &KeyPair{
		seed: append([]byte(nil), seed...),
		priv: priv,
		pub:  priv.GetPublic(),
		id:   id,
	}, nil
}

// FromHex parses a 64-hex-character secret key string (P6: round-trips).
func FromHex(s string) (*KeyPair, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode secret key hex: %w", err)
	}
	return FromSeed(seed)
}

// FromFile reads a secret key file. Its contents are 32 raw bytes, not
// hex text — secret-key material is raw when stored in a file and hex
// only when passed as a string (§6 "Persisted state").
func FromFile(path string) (*KeyPair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret key file %s: %w", path, err)
	}
	return FromSeed(b)
}

// WriteFile persists the raw 32-byte seed to path with owner-only permissions.
func (k *KeyPair) WriteFile(path string) error {
	if err := os.WriteFile(path, k.seed, 0o600); err != nil {
		return fmt.Errorf("write secret key file %s: %w", path, err)
	}
	return nil
}

// SecretKeyHex returns the 64-hex-character secret key.
func (k *KeyPair) SecretKeyHex() string {
	return hex.EncodeToString(k.seed)
}

// PublicKeyHex returns the 64-hex-character public key.
func (k *KeyPair) PublicKeyHex() string {
	raw, _ := k.pub.Raw()
	return hex.EncodeToString(raw)
}

// PrivKey returns the libp2p private key, for handing to the transport host.
func (k *KeyPair) PrivKey() p2pcrypto.PrivKey {
	return k.priv
}

// PeerID returns the derived libp2p peer ID.
func (k *KeyPair) PeerID() peer.ID {
	return k.id
}

// PeerIDFromHex decodes a hex-encoded 32-byte ed25519 public key into the
// peer ID used for dialing and allow-list comparisons.
func PeerIDFromHex(pubHex string) (peer.ID, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return "", fmt.Errorf("decode peer public key hex: %w", err)
	}
	pub, err := p2pcrypto.UnmarshalEd25519PublicKey(raw)
	if err != nil {
		return "", fmt.Errorf("unmarshal peer public key: %w", err)
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("derive peer id: %w", err)
	}
	return id, nil
}

// HexFromPeerID recovers the hex-encoded ed25519 public key carried by a
// peer ID, for logging and allow-list comparisons against configured hex
// strings.
func HexFromPeerID(id peer.ID) (string, error) {
	pub, err := id.ExtractPublicKey()
	if err != nil {
		return "", fmt.Errorf("extract public key from peer id: %w", err)
	}
	raw, err := pub.Raw()
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Resolve picks the key pair from, in priority order: an explicit hex
// string, an explicit file path, then generates a fresh ephemeral pair if
// neither is set. Mirrors the teacher's flag-then-config-then-default
// fallback chain (bridge/main.go's --verbose/bootCfg.Verbose pattern).
func Resolve(hexKey, filePath string) (*KeyPair, bool, error) {
	switch {
	case hexKey != "":
		kp, err := FromHex(hexKey)
		return kp, false, err
	case filePath != "":
		kp, err := FromFile(filePath)
		return kp, false, err
	default:
		kp, err := Generate()
		return kp, true, err
	}
}
