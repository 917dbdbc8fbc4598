// Package depstore turns client-submitted dependency declarations into
// validated, persisted dependency records for a package-registry backend,
// and renders stored records into the public API and version-control index
// representations.
//
// Basic usage:
//
//	import "github.com/git-pkgs/depstore"
//
//	store, err := depstore.Open("registry.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	prepared, err := depstore.ValidateDependencies(ctx, decls, versionID, store)
//	if err != nil {
//		// UnknownPackageError, WildcardConstraintError, ... are user-facing
//		log.Fatal(err)
//	}
//
//	records, err := store.InsertDependencies(ctx, prepared)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, rec := range records {
//		fmt.Println(rec.Encodable("serde", 0))
//	}
//
// Validation is fail-fast per submission: the first invalid declaration
// aborts the whole batch and nothing is persisted.
package depstore

import (
	"context"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/depstore/internal/core"
	"github.com/git-pkgs/depstore/internal/store"
)

// Re-export types from internal/core
type (
	// Dependency is one stored dependency edge from a package version to a
	// target package.
	Dependency = core.Dependency

	// ReverseDependency is a dependency enriched with the declaring
	// package's name and download count.
	ReverseDependency = core.ReverseDependency

	// EncodableDependency is the public API representation of a dependency.
	EncodableDependency = core.EncodableDependency

	// IndexDependency is the representation consumed by the version-control
	// index writer.
	IndexDependency = core.IndexDependency

	// Declaration is a raw client-submitted dependency declaration.
	Declaration = core.Declaration

	// NewDependency is a validated record ready for insertion.
	NewDependency = core.NewDependency

	// Kind indicates the role of a dependency.
	Kind = core.Kind

	// NameResolver resolves candidate names against the package table.
	NameResolver = core.NameResolver

	// ResolvedPackage is one row from the package-name table.
	ResolvedPackage = core.ResolvedPackage
)

// Re-export constants
const (
	Normal = core.Normal
	Build  = core.Build
	Dev    = core.Dev
)

// Re-export errors
var (
	ErrUnknownPackage     = core.ErrUnknownPackage
	ErrWildcardConstraint = core.ErrWildcardConstraint
	ErrNotFound           = store.ErrNotFound
)

// Error types
type (
	UnknownPackageError      = core.UnknownPackageError
	WildcardConstraintError  = core.WildcardConstraintError
	MalformedConstraintError = core.MalformedConstraintError
	DuplicateDependencyError = core.DuplicateDependencyError
	CorruptRecordError       = core.CorruptRecordError
)

// Re-export types from store
type (
	// Store persists packages, versions, and dependency records.
	Store = store.Store

	// Package is one row of the package lookup table.
	Package = store.Package

	// Option configures a Store.
	Option = store.Option
)

// WithBusyRetry sets how long write operations retry on a locked database.
var WithBusyRetry = store.WithBusyRetry

// Open opens (creating if necessary) the registry database at the given
// DSN and runs the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	return store.Open(dsn, opts...)
}

// ValidateDependencies validates a submission's declarations against the
// package table and returns storable records for the given version. It
// fails the entire batch on the first problem encountered.
func ValidateDependencies(ctx context.Context, decls []Declaration, versionID int64, resolver NameResolver) ([]NewDependency, error) {
	return core.ValidateDependencies(ctx, decls, versionID, resolver)
}

// ParseKind parses the wire name of a dependency kind ("normal", "build",
// "dev"). The empty string defaults to Normal.
func ParseKind(s string) (Kind, error) {
	return core.ParseKind(s)
}

// KindFromCode maps a stored kind code back to a Kind.
func KindFromCode(code int64) (Kind, error) {
	return core.KindFromCode(code)
}

// CanonicalName normalizes a package name for lookup: lower-cased, with
// `-` and `_` treated as equivalent.
func CanonicalName(name string) string {
	return core.CanonicalName(name)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:cargo/serde) and version PURLs
// (pkg:cargo/serde@1.0.0).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}
