package core

import (
	"context"
	"errors"
	"testing"
)

// fakeResolver serves canonical-name lookups from an in-memory table,
// mirroring the pre-filter contract of the real store: it returns every
// package whose canonical name matches any candidate's canonical form.
type fakeResolver struct {
	packages map[string]int64 // stored name -> id
	err      error
	calls    int
	last     []string
}

func (f *fakeResolver) ResolveNames(ctx context.Context, names []string) ([]ResolvedPackage, error) {
	f.calls++
	f.last = names
	if f.err != nil {
		return nil, f.err
	}
	var out []ResolvedPackage
	for stored, id := range f.packages {
		for _, n := range names {
			if CanonicalName(stored) == CanonicalName(n) {
				out = append(out, ResolvedPackage{ID: id, Name: stored})
				break
			}
		}
	}
	return out, nil
}

func TestValidateDependencies(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1, "rand": 2}}
	decls := []Declaration{
		{Name: "serde", Req: "^1.0", DefaultFeatures: true, Features: []string{"derive"}},
		{Name: "rand", Req: ">=0.8, <0.9", Optional: true, Target: "cfg(unix)", Kind: "dev"},
	}

	prepared, err := ValidateDependencies(context.Background(), decls, 42, resolver)
	if err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}
	if len(prepared) != 2 {
		t.Fatalf("expected 2 prepared records, got %d", len(prepared))
	}

	first := prepared[0]
	if first.VersionID != 42 {
		t.Errorf("expected version id 42, got %d", first.VersionID)
	}
	if first.PackageID != 1 {
		t.Errorf("expected package id 1, got %d", first.PackageID)
	}
	if first.Req != "^1.0" {
		t.Errorf("expected req %q, got %q", "^1.0", first.Req)
	}
	if !first.DefaultFeatures || first.Optional {
		t.Errorf("unexpected flags: optional=%v default_features=%v", first.Optional, first.DefaultFeatures)
	}
	if len(first.Features) != 1 || first.Features[0] != "derive" {
		t.Errorf("unexpected features: %v", first.Features)
	}
	if first.Kind != Normal {
		t.Errorf("expected kind defaulted to normal, got %v", first.Kind)
	}

	second := prepared[1]
	if second.PackageID != 2 {
		t.Errorf("expected package id 2, got %d", second.PackageID)
	}
	if second.Kind != Dev {
		t.Errorf("expected kind dev, got %v", second.Kind)
	}
	if second.Target != "cfg(unix)" {
		t.Errorf("unexpected target: %q", second.Target)
	}
}

func TestValidateSingleResolverRoundTrip(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1, "rand": 2}}
	decls := []Declaration{
		{Name: "serde", Req: "^1.0"},
		{Name: "rand", Req: "0.8"},
	}

	if _, err := ValidateDependencies(context.Background(), decls, 1, resolver); err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}
	if resolver.calls != 1 {
		t.Errorf("expected a single resolver call, got %d", resolver.calls)
	}
	if len(resolver.last) != 2 {
		t.Errorf("expected both names in one query, got %v", resolver.last)
	}
}

func TestValidateUnknownPackage(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{
		{Name: "serde", Req: "^1.0"},
		{Name: "bogus-pkg", Req: "1.0"},
	}

	_, err := ValidateDependencies(context.Background(), decls, 1, resolver)
	if err == nil {
		t.Fatal("expected error for unknown package")
	}
	if !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("expected ErrUnknownPackage, got %v", err)
	}
	var unknown *UnknownPackageError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPackageError, got %T", err)
	}
	if unknown.Name != "bogus-pkg" {
		t.Errorf("expected offending name %q, got %q", "bogus-pkg", unknown.Name)
	}
}

func TestValidateWildcardConstraint(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{{Name: "serde", Req: "*"}}

	_, err := ValidateDependencies(context.Background(), decls, 1, resolver)
	if err == nil {
		t.Fatal("expected error for wildcard constraint")
	}
	if !errors.Is(err, ErrWildcardConstraint) {
		t.Errorf("expected ErrWildcardConstraint, got %v", err)
	}
	var wildcard *WildcardConstraintError
	if !errors.As(err, &wildcard) {
		t.Fatalf("expected WildcardConstraintError, got %T", err)
	}
	if wildcard.Name != "serde" {
		t.Errorf("expected name %q, got %q", "serde", wildcard.Name)
	}
}

func TestValidateMalformedConstraint(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{{Name: "serde", Req: "bananas"}}

	_, err := ValidateDependencies(context.Background(), decls, 1, resolver)
	if err == nil {
		t.Fatal("expected error for malformed constraint")
	}
	var malformed *MalformedConstraintError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedConstraintError, got %T", err)
	}
	if malformed.Req != "bananas" {
		t.Errorf("expected req %q, got %q", "bananas", malformed.Req)
	}
}

func TestValidateKindDefaulting(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}

	omitted, err := ValidateDependencies(context.Background(),
		[]Declaration{{Name: "serde", Req: "^1.0"}}, 1, resolver)
	if err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}
	explicit, err := ValidateDependencies(context.Background(),
		[]Declaration{{Name: "serde", Req: "^1.0", Kind: "normal"}}, 1, resolver)
	if err != nil {
		t.Fatalf("ValidateDependencies failed: %v", err)
	}

	if omitted[0].Kind != explicit[0].Kind {
		t.Errorf("omitted kind %v != explicit normal %v", omitted[0].Kind, explicit[0].Kind)
	}
	if omitted[0].Kind != Normal {
		t.Errorf("expected normal, got %v", omitted[0].Kind)
	}
}

func TestValidateUnknownKind(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{{Name: "serde", Req: "^1.0", Kind: "runtime"}}

	if _, err := ValidateDependencies(context.Background(), decls, 1, resolver); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestValidateExactNameMatch(t *testing.T) {
	// The canonical lookup is only a pre-filter: `serde-json` canonically
	// matches a package stored as `serde_json`, but the final match is on
	// the exact stored name.
	resolver := &fakeResolver{packages: map[string]int64{"serde_json": 7}}

	_, err := ValidateDependencies(context.Background(),
		[]Declaration{{Name: "serde-json", Req: "^1.0"}}, 1, resolver)
	if !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("expected ErrUnknownPackage for near-name, got %v", err)
	}

	prepared, err := ValidateDependencies(context.Background(),
		[]Declaration{{Name: "serde_json", Req: "^1.0"}}, 1, resolver)
	if err != nil {
		t.Fatalf("exact name failed: %v", err)
	}
	if prepared[0].PackageID != 7 {
		t.Errorf("expected package id 7, got %d", prepared[0].PackageID)
	}
}

func TestValidateDuplicateDeclaration(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{
		{Name: "serde", Req: "^1.0"},
		{Name: "serde", Req: "^1.2"},
	}

	_, err := ValidateDependencies(context.Background(), decls, 1, resolver)
	var dup *DuplicateDependencyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateDependencyError, got %v", err)
	}

	// Same target with a different kind is a distinct edge.
	decls[1].Kind = "dev"
	if _, err := ValidateDependencies(context.Background(), decls, 1, resolver); err != nil {
		t.Errorf("distinct kinds should not collide: %v", err)
	}
}

func TestValidateEmptyFeatureName(t *testing.T) {
	resolver := &fakeResolver{packages: map[string]int64{"serde": 1}}
	decls := []Declaration{{Name: "serde", Req: "^1.0", Features: []string{"derive", ""}}}

	if _, err := ValidateDependencies(context.Background(), decls, 1, resolver); err == nil {
		t.Fatal("expected error for empty feature name")
	}
}

func TestValidateResolverError(t *testing.T) {
	boom := errors.New("connection reset")
	resolver := &fakeResolver{err: boom}

	_, err := ValidateDependencies(context.Background(),
		[]Declaration{{Name: "serde", Req: "^1.0"}}, 1, resolver)
	if !errors.Is(err, boom) {
		t.Errorf("expected storage error to propagate, got %v", err)
	}
}

func TestValidateEmptyBatch(t *testing.T) {
	resolver := &fakeResolver{}
	prepared, err := ValidateDependencies(context.Background(), nil, 1, resolver)
	if err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if len(prepared) != 0 {
		t.Errorf("expected no records, got %d", len(prepared))
	}
	if resolver.calls != 0 {
		t.Errorf("expected no resolver call for empty batch, got %d", resolver.calls)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"serde", "serde"},
		{"Serde", "serde"},
		{"serde-json", "serde_json"},
		{"serde_json", "serde_json"},
		{"SERDE-JSON", "serde_json"},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.in); got != tt.want {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
