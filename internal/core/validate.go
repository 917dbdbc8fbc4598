package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// wildcardReq is the canonical form of the unconstrained requirement.
const wildcardReq = "*"

// ResolvedPackage is one row from the package-name table.
type ResolvedPackage struct {
	ID   int64
	Name string
}

// NameResolver resolves candidate names against the package table. The
// lookup matches canonically (see CanonicalName), so the result may contain
// packages whose stored name differs from the candidate.
type NameResolver interface {
	ResolveNames(ctx context.Context, names []string) ([]ResolvedPackage, error)
}

// CanonicalName normalizes a package name for lookup: lower-cased, with
// `-` and `_` treated as equivalent.
func CanonicalName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}

// ValidateDependencies turns raw client-submitted declarations into
// storable records for the given version. It is fail-fast: the first
// invalid declaration aborts the whole batch and nothing is returned.
//
// All declared names are resolved in a single round trip. The canonical
// lookup is a pre-filter; the final match is on the exact stored name, so
// declaring `serde-json` does not resolve a package named `serde_json`.
func ValidateDependencies(ctx context.Context, decls []Declaration, versionID int64, resolver NameResolver) ([]NewDependency, error) {
	if len(decls) == 0 {
		return nil, nil
	}

	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	resolved, err := resolver.ResolveNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolving dependency names: %w", err)
	}
	byName := make(map[string]int64, len(resolved))
	for _, p := range resolved {
		byName[p.Name] = p.ID
	}

	type edge struct {
		pkg  int64
		kind Kind
	}
	seen := make(map[edge]struct{}, len(decls))

	prepared := make([]NewDependency, 0, len(decls))
	for _, d := range decls {
		pkgID, ok := byName[d.Name]
		if !ok {
			return nil, &UnknownPackageError{Name: d.Name}
		}

		req, err := semver.NewConstraint(d.Req)
		if err != nil {
			return nil, &MalformedConstraintError{Name: d.Name, Req: d.Req, Err: err}
		}
		if req.String() == wildcardReq {
			return nil, &WildcardConstraintError{Name: d.Name}
		}

		kind, err := ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", d.Name, err)
		}

		for _, f := range d.Features {
			if f == "" {
				return nil, fmt.Errorf("dependency %q: empty feature name", d.Name)
			}
		}

		e := edge{pkg: pkgID, kind: kind}
		if _, dup := seen[e]; dup {
			return nil, &DuplicateDependencyError{Name: d.Name, Kind: kind}
		}
		seen[e] = struct{}{}

		prepared = append(prepared, NewDependency{
			VersionID:       versionID,
			PackageID:       pkgID,
			Req:             req.String(),
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Features:        d.Features,
			Target:          d.Target,
			Kind:            kind,
		})
	}
	return prepared, nil
}
