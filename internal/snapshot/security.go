package snapshot

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// securityAlgorithm names the envelope-encryption scheme used for snapshot
// NDJSON files, recorded in manifest.security.json per spec §9's open
// question on envelope-encryption metadata (the Rust core leaves the choice
// unspecified; XChaCha20-Poly1305 is documented here as the implementation's
// choice, not copied from the Tauri shell's AES-256-GCM/Argon2 local-disk
// scheme, which is an orthogonal concern).
const securityAlgorithm = "xchacha20poly1305"

// FileSecurity is the per-file envelope-encryption metadata recorded in
// manifest.security.json: the nonce used for that file's ciphertext.
type FileSecurity struct {
	Nonce string `json:"nonce"`
}

// SecurityMetadata is the full manifest.security.json document.
type SecurityMetadata struct {
	Algorithm string                  `json:"algorithm"`
	Files     map[string]FileSecurity `json:"files"`
}

// signManifest returns an Ed25519 signature over the exact bytes of an
// already-written manifest.json file.
func signManifest(manifestPath string, key ed25519.PrivateKey) ([]byte, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for signing: %w", err)
	}
	return ed25519.Sign(key, data), nil
}

// verifyManifestSignature checks a detached Ed25519 signature over
// manifest.json's exact on-disk bytes.
func verifyManifestSignature(manifestPath string, publicKey ed25519.PublicKey, signature []byte) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest for signature verification: %w", err)
	}
	if !ed25519.Verify(publicKey, data, signature) {
		return fmt.Errorf("manifest signature verification failed")
	}
	return nil
}

// encryptFileInPlace envelope-encrypts path with XChaCha20-Poly1305 under
// key, replacing the file's plaintext contents with ciphertext and returning
// the nonce used, to be recorded in manifest.security.json.
func encryptFileInPlace(path string, key []byte) (nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption for %s: %w", path, err)
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s for encryption: %w", path, err)
	}

	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce for %s: %w", path, err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write encrypted %s: %w", path, err)
	}
	return nonce, nil
}

// decryptFileInPlace reverses encryptFileInPlace, replacing ciphertext with
// the original plaintext.
func decryptFileInPlace(path string, key []byte, nonceHex string) error {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to initialize decryption for %s: %w", path, err)
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return fmt.Errorf("invalid nonce recorded for %s: %w", path, err)
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s for decryption: %w", path, err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt %s: %w", path, err)
	}
	if err := os.WriteFile(path, plaintext, 0o600); err != nil {
		return fmt.Errorf("failed to write decrypted %s: %w", path, err)
	}
	return nil
}

func writeSecurityMetadata(path string, metadata *SecurityMetadata) error {
	return writeJSONFileAtomic(path, metadata)
}

func readSecurityMetadata(path string) (*SecurityMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read security metadata %s: %w", path, err)
	}
	var metadata SecurityMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse security metadata %s: %w", path, err)
	}
	return &metadata, nil
}
