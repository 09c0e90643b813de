package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromHexRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	hexKey := kp.SecretKeyHex()

	got, err := FromHex(hexKey)
	if err != nil {
		t.Fatalf("FromHex error: %v", err)
	}
	if got.PeerID() != kp.PeerID() {
		t.Fatalf("peer id mismatch: got %s, want %s", got.PeerID(), kp.PeerID())
	}
	if got.PublicKeyHex() != kp.PublicKeyHex() {
		t.Fatalf("public key mismatch")
	}
}

func TestFromFileRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key")
	if err := kp.WriteFile(path); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("key file perms = %o, want 0600", info.Mode().Perm())
	}

	got, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile error: %v", err)
	}
	if got.PeerID() != kp.PeerID() {
		t.Fatalf("peer id mismatch after file round trip")
	}
}

func TestPeerIDHexRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	id, err := PeerIDFromHex(kp.PublicKeyHex())
	if err != nil {
		t.Fatalf("PeerIDFromHex error: %v", err)
	}
	if id != kp.PeerID() {
		t.Fatalf("peer id mismatch")
	}
	gotHex, err := HexFromPeerID(id)
	if err != nil {
		t.Fatalf("HexFromPeerID error: %v", err)
	}
	if gotHex != kp.PublicKeyHex() {
		t.Fatalf("got %s, want %s", gotHex, kp.PublicKeyHex())
	}
}

func TestResolvePriority(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	got, generated, err := Resolve(kp.SecretKeyHex(), "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if generated {
		t.Fatalf("Resolve with hex key should not report generated")
	}
	if got.PeerID() != kp.PeerID() {
		t.Fatalf("Resolve did not honor hex key priority")
	}

	_, generated, err = Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve fallback error: %v", err)
	}
	if !generated {
		t.Fatalf("Resolve with no inputs should generate a fresh key")
	}
}

func TestFromSeedRejectsWrongLength(t *testing.T) {
	if _, err := FromSeed([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short seed")
	}
}
