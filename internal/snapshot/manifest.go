// Package snapshot exports and imports deterministic NDJSON snapshots of a
// memory kernel store: the two record/package NDJSON files, a SHA-256
// manifest, and optional Ed25519 signing and XChaCha20-Poly1305 envelope
// encryption of the NDJSON payloads.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	recordsFileName   = "memory_records.ndjson"
	packagesFileName  = "context_packages.ndjson"
	manifestFileName  = "manifest.json"
	signatureFileName = "manifest.sig"
	securityFileName  = "manifest.security.json"
)

// FileDigest is one entry in a Manifest's files list.
type FileDigest struct {
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Records int    `json:"records"`
}

// Manifest is the export manifest written alongside the NDJSON files.
type Manifest struct {
	SchemaVersion int64        `json:"schema_version"`
	ExportedAt    string       `json:"exported_at"`
	Files         []FileDigest `json:"files"`
}

// ImportSummary reports how many records and context packages an import
// wrote versus skipped as already-present.
type ImportSummary struct {
	ImportedRecords                int `json:"imported_records"`
	SkippedExistingRecords         int `json:"skipped_existing_records"`
	ImportedContextPackages        int `json:"imported_context_packages"`
	SkippedExistingContextPackages int `json:"skipped_existing_context_packages"`
}

// writeJSONFileAtomic marshals v as indented JSON and writes it to path via
// a temp-file-then-rename, finishing with 0600 permissions. Grounded on the
// teacher's internal/export/manifest.go WriteManifest: create a temp file in
// the same directory, write, close, rename, chmod.
func writeJSONFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tempFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", base, err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", base, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", base, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", base, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", base, err)
	}
	return nil
}

func readManifestFile(path string) (*Manifest, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file %s: %w", path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(bytes, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON %s: %w", path, err)
	}
	return &manifest, nil
}

// validateImportManifest enforces the manifest invariants required before
// any row is imported: a supported schema version, no duplicate file
// entries, and both required files present with matching digest and count.
func validateImportManifest(inDir string, manifest *Manifest, latestSchemaVersion int64) error {
	if manifest.SchemaVersion <= 0 || manifest.SchemaVersion > latestSchemaVersion {
		return fmt.Errorf("unsupported export schema version %d; supported range is 1..=%d", manifest.SchemaVersion, latestSchemaVersion)
	}

	byPath := make(map[string]FileDigest, len(manifest.Files))
	for _, file := range manifest.Files {
		if _, exists := byPath[file.Path]; exists {
			return fmt.Errorf("manifest contains duplicate file entry: %s", file.Path)
		}
		byPath[file.Path] = file
	}

	for _, required := range []string{recordsFileName, packagesFileName} {
		expected, ok := byPath[required]
		if !ok {
			return fmt.Errorf("manifest is missing required file entry: %s", required)
		}

		filePath := filepath.Join(inDir, required)
		if _, err := os.Stat(filePath); err != nil {
			return fmt.Errorf("manifest references missing file %s", filePath)
		}

		actualSHA256, actualRecords, err := ndjsonDigestAndRecords(filePath)
		if err != nil {
			return err
		}
		if actualSHA256 != expected.SHA256 {
			return fmt.Errorf("manifest digest mismatch for %s: expected %s, got %s", required, expected.SHA256, actualSHA256)
		}
		if actualRecords != expected.Records {
			return fmt.Errorf("manifest record count mismatch for %s: expected %d, got %d", required, expected.Records, actualRecords)
		}
	}
	return nil
}
