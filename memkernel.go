// Package memkernel provides a minimal public API for embedding the memory
// kernel in other Go programs: opening a store, writing and querying policy
// records, and exporting/importing snapshots.
//
// Most callers embedding the kernel directly will want this package rather
// than reaching into internal/kernel, internal/ranking, internal/storage, or
// internal/snapshot themselves.
package memkernel

import (
	"context"
	"crypto/ed25519"

	"github.com/memkernel/memkernel/internal/config"
	"github.com/memkernel/memkernel/internal/kernel"
	"github.com/memkernel/memkernel/internal/ranking"
	"github.com/memkernel/memkernel/internal/snapshot"
	"github.com/memkernel/memkernel/internal/storage/sqlite"
)

// Core record types for working with memory records and context packages.
type (
	MemoryRecord        = kernel.MemoryRecord
	MemoryId            = kernel.MemoryId
	MemoryVersionId     = kernel.MemoryVersionId
	RecordType          = kernel.RecordType
	TruthStatus         = kernel.TruthStatus
	Authority           = kernel.Authority
	ConstraintEffect    = kernel.ConstraintEffect
	ConstraintScope     = kernel.ConstraintScope
	ConstraintPayload   = kernel.ConstraintPayload
	SummaryPayload      = kernel.SummaryPayload
	Payload             = kernel.Payload
	Provenance          = kernel.Provenance
	LinkType            = kernel.LinkType
	QueryRequest        = kernel.QueryRequest
	ContextPackage      = kernel.ContextPackage
	ContextItem         = kernel.ContextItem
	Answer              = kernel.Answer
	DeterminismMetadata = kernel.DeterminismMetadata
)

// RecordType constants.
const (
	RecordTypeConstraint = kernel.RecordTypeConstraint
	RecordTypeDecision   = kernel.RecordTypeDecision
	RecordTypePreference = kernel.RecordTypePreference
	RecordTypeEvent      = kernel.RecordTypeEvent
	RecordTypeOutcome    = kernel.RecordTypeOutcome
)

// TruthStatus constants.
const (
	TruthStatusObserved    = kernel.TruthStatusObserved
	TruthStatusAsserted    = kernel.TruthStatusAsserted
	TruthStatusInferred    = kernel.TruthStatusInferred
	TruthStatusSpeculative = kernel.TruthStatusSpeculative
	TruthStatusRetracted   = kernel.TruthStatusRetracted
)

// Authority constants.
const (
	AuthorityAuthoritative = kernel.AuthorityAuthoritative
	AuthorityDerived       = kernel.AuthorityDerived
	AuthorityNote          = kernel.AuthorityNote
)

// ConstraintEffect constants.
const (
	ConstraintEffectAllow = kernel.ConstraintEffectAllow
	ConstraintEffectDeny  = kernel.ConstraintEffectDeny
)

// LinkType constants.
const (
	LinkTypeSupersedes  = kernel.LinkTypeSupersedes
	LinkTypeContradicts = kernel.LinkTypeContradicts
)

// Store is the minimal interface for embedding: open a database, write and
// list records, save and fetch context packages, and run integrity/backup
// operations.
type Store = sqlite.Store

// Open opens (creating if necessary) a SQLite-backed memory kernel store at
// path and migrates it to the latest schema.
func Open(path string) (*Store, error) {
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// BuildContextPackage ranks records by the policy-query rules (scope
// specificity, then authority, truth status, confidence, and recency) and
// returns the resulting Context Package. When the top-precedence group holds
// both an allow and a deny, the answer is Inconclusive.
func BuildContextPackage(records []MemoryRecord, query QueryRequest, snapshotID string) (ContextPackage, error) {
	return ranking.BuildContextPackage(records, query, snapshotID)
}

// BuildRecallContextPackage ranks records by query-term overlap, then
// authority, truth status, confidence, and recency, for recall over the given
// record types.
func BuildRecallContextPackage(records []MemoryRecord, query QueryRequest, snapshotID string, recordTypes []RecordType) (ContextPackage, error) {
	return ranking.BuildRecallContextPackage(records, query, snapshotID, recordTypes)
}

// ExportOptions and ImportOptions control snapshot signing, encryption, and
// duplicate-handling behavior.
type (
	ExportOptions = snapshot.ExportOptions
	ImportOptions = snapshot.ImportOptions
	Manifest      = snapshot.Manifest
	ImportSummary = snapshot.ImportSummary
)

// ExportSnapshot writes a content-addressed NDJSON snapshot of store's
// records and context packages to outDir, optionally signed and encrypted
// per opts.
func ExportSnapshot(ctx context.Context, store *Store, outDir string, opts ExportOptions) (*Manifest, error) {
	return snapshot.ExportSnapshot(ctx, store, outDir, opts)
}

// ImportSnapshot loads a snapshot previously written by ExportSnapshot from
// inDir into store, verifying its manifest (and signature/encryption, if
// configured in opts) before writing anything.
func ImportSnapshot(ctx context.Context, store *Store, inDir string, opts ImportOptions) (*ImportSummary, error) {
	return snapshot.ImportSnapshot(ctx, store, inDir, opts)
}

// StoreConfig is the on-disk/environment configuration for where a store's
// database, snapshot directory, and security key material live.
type StoreConfig = config.StoreConfig

// LoadStoreConfigYAML and LoadStoreConfigTOML load a StoreConfig from disk,
// applying environment-variable overrides, tolerating a missing file by
// returning defaults.
func LoadStoreConfigYAML(path string) (*StoreConfig, error) {
	return config.LoadYAMLWithEnv(path)
}

func LoadStoreConfigTOML(path string) (*StoreConfig, error) {
	return config.LoadTOMLWithEnv(path)
}

// GenerateSigningKey mints a fresh Ed25519 keypair for snapshot signing.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}
