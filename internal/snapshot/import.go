package snapshot

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/memkernel/memkernel/internal/kernel"
	"github.com/memkernel/memkernel/internal/storage/sqlite"
)

// ImportOptions controls signature verification, decryption, and duplicate
// handling for ImportSnapshot.
type ImportOptions struct {
	// SkipExisting, when true, skips rows whose id already exists in the
	// target store instead of failing the import.
	SkipExisting bool

	// VerifyKey, when non-nil, is used to verify manifest.sig if present.
	// RequireSignatureVerification forces verification even if the caller
	// did not ask, failing the import when no signature file exists.
	VerifyKey                    ed25519.PublicKey
	RequireSignatureVerification bool

	// DecryptionKey is required when the snapshot carries
	// manifest.security.json; its absence in that case is an import error.
	DecryptionKey []byte
}

// ImportSnapshot migrates store to the latest schema, validates inDir's
// manifest against the on-disk NDJSON files (re-hashing and re-counting),
// optionally verifies a detached signature and decrypts envelope-encrypted
// payloads, then imports records and context packages one at a time,
// honoring opts.SkipExisting for rows that already exist.
func ImportSnapshot(ctx context.Context, store *sqlite.Store, inDir string, opts ImportOptions) (*ImportSummary, error) {
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate store before import: %w", err)
	}

	manifestPath := filepath.Join(inDir, manifestFileName)
	manifest, err := readManifestFile(manifestPath)
	if err != nil {
		return nil, err
	}

	status, err := store.SchemaStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema status before import: %w", err)
	}

	workDir := inDir
	securityPath := filepath.Join(inDir, securityFileName)
	if _, err := os.Stat(securityPath); err == nil {
		if opts.DecryptionKey == nil {
			return nil, fmt.Errorf("encrypted snapshot without explicit decrypt key")
		}
		decryptedDir, err := decryptSnapshotToTempDir(inDir, securityPath, opts.DecryptionKey)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(decryptedDir)
		workDir = decryptedDir
	}

	if err := validateImportManifest(workDir, manifest, status.TargetVersion); err != nil {
		return nil, err
	}

	sigPath := filepath.Join(inDir, signatureFileName)
	_, sigStatErr := os.Stat(sigPath)
	sigExists := sigStatErr == nil
	if sigExists || opts.RequireSignatureVerification {
		if !sigExists {
			return nil, fmt.Errorf("manifest.sig is required but missing")
		}
		if opts.VerifyKey == nil {
			return nil, fmt.Errorf("signature verification requested but no verify key supplied")
		}
		signature, err := os.ReadFile(sigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest signature: %w", err)
		}
		if err := verifyManifestSignature(manifestPath, opts.VerifyKey, signature); err != nil {
			return nil, err
		}
	}

	records, err := readNDJSONFile[kernel.MemoryRecord](filepath.Join(workDir, recordsFileName))
	if err != nil {
		return nil, err
	}
	packages, err := readNDJSONFile[kernel.ContextPackage](filepath.Join(workDir, packagesFileName))
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	for _, record := range records {
		exists, err := store.RecordExists(ctx, record.MemoryVersionID)
		if err != nil {
			return nil, err
		}
		if exists {
			if opts.SkipExisting {
				summary.SkippedExistingRecords++
				continue
			}
			return nil, fmt.Errorf("record already exists for memory_version_id %s", record.MemoryVersionID)
		}
		if err := store.WriteRecord(ctx, &record); err != nil {
			return nil, err
		}
		summary.ImportedRecords++
	}

	for _, pkg := range packages {
		exists, err := store.ContextPackageExists(ctx, pkg.ContextPackageID)
		if err != nil {
			return nil, err
		}
		if exists {
			if opts.SkipExisting {
				summary.SkippedExistingContextPackages++
				continue
			}
			return nil, fmt.Errorf("context package already exists: %s", pkg.ContextPackageID)
		}
		if err := store.SaveContextPackage(ctx, &pkg); err != nil {
			return nil, err
		}
		summary.ImportedContextPackages++
	}

	return summary, nil
}

// decryptSnapshotToTempDir copies the encrypted NDJSON files into a fresh
// temp directory and decrypts them there, leaving inDir untouched so a
// failed or repeated import never mutates the caller's snapshot directory.
func decryptSnapshotToTempDir(inDir, securityPath string, decryptionKey []byte) (string, error) {
	security, err := readSecurityMetadata(securityPath)
	if err != nil {
		return "", err
	}
	if security.Algorithm != securityAlgorithm {
		return "", fmt.Errorf("unsupported envelope-encryption algorithm: %s", security.Algorithm)
	}

	tempDir, err := os.MkdirTemp("", "memkernel-import-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory for decryption: %w", err)
	}

	for _, name := range []string{recordsFileName, packagesFileName} {
		fileSecurity, ok := security.Files[name]
		if !ok {
			_ = os.RemoveAll(tempDir)
			return "", fmt.Errorf("security metadata is missing an entry for %s", name)
		}
		destPath := filepath.Join(tempDir, name)
		if err := copyPlainFile(filepath.Join(inDir, name), destPath); err != nil {
			_ = os.RemoveAll(tempDir)
			return "", err
		}
		if err := decryptFileInPlace(destPath, decryptionKey, fileSecurity.Nonce); err != nil {
			_ = os.RemoveAll(tempDir)
			return "", err
		}
	}

	return tempDir, nil
}

func copyPlainFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s for decryption: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s for decryption: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s for decryption: %w", src, err)
	}
	return nil
}
