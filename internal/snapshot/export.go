package snapshot

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/memkernel/memkernel/internal/storage/sqlite"
)

// ExportOptions controls optional signing and encryption of an exported
// snapshot. A nil SigningKey or EncryptionKey skips that step entirely.
type ExportOptions struct {
	SigningKey    ed25519.PrivateKey
	EncryptionKey []byte
}

// ExportSnapshot streams every record and context package in store into a
// deterministic NDJSON snapshot under outDir, writes its manifest, and
// optionally signs the manifest and envelope-encrypts the NDJSON payloads.
func ExportSnapshot(ctx context.Context, store *sqlite.Store, outDir string, opts ExportOptions) (*Manifest, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", outDir, err)
	}

	records, err := store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for export: %w", err)
	}
	packages, err := store.ListContextPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list context packages for export: %w", err)
	}

	recordsPath := filepath.Join(outDir, recordsFileName)
	recordsDigest, recordsCount, err := writeNDJSONFile(recordsPath, records)
	if err != nil {
		return nil, err
	}

	packagesPath := filepath.Join(outDir, packagesFileName)
	packagesDigest, packagesCount, err := writeNDJSONFile(packagesPath, packages)
	if err != nil {
		return nil, err
	}

	status, err := store.SchemaStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema status for export: %w", err)
	}

	manifest := &Manifest{
		SchemaVersion: status.TargetVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Files: []FileDigest{
			{Path: recordsFileName, SHA256: recordsDigest, Records: recordsCount},
			{Path: packagesFileName, SHA256: packagesDigest, Records: packagesCount},
		},
	}

	manifestPath := filepath.Join(outDir, manifestFileName)
	if err := writeJSONFileAtomic(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("failed to write export manifest: %w", err)
	}

	if opts.SigningKey != nil {
		signature, err := signManifest(manifestPath, opts.SigningKey)
		if err != nil {
			return nil, err
		}
		sigPath := filepath.Join(outDir, signatureFileName)
		if err := os.WriteFile(sigPath, signature, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write manifest signature: %w", err)
		}
	}

	if opts.EncryptionKey != nil {
		security := &SecurityMetadata{
			Algorithm: securityAlgorithm,
			Files:     make(map[string]FileSecurity, 2),
		}
		for _, entry := range []struct{ name, path string }{
			{recordsFileName, recordsPath},
			{packagesFileName, packagesPath},
		} {
			nonce, err := encryptFileInPlace(entry.path, opts.EncryptionKey)
			if err != nil {
				return nil, err
			}
			security.Files[entry.name] = FileSecurity{Nonce: fmt.Sprintf("%x", nonce)}
		}
		securityPath := filepath.Join(outDir, securityFileName)
		if err := writeSecurityMetadata(securityPath, security); err != nil {
			return nil, fmt.Errorf("failed to write security metadata: %w", err)
		}
	}

	return manifest, nil
}
