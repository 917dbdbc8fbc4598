// Package core provides the dependency record model, the batch validator,
// and the outbound encodings.
package core

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Kind indicates the role of a dependency.
type Kind int

const (
	// Normal dependencies are required at runtime.
	Normal Kind = 0
	// Build dependencies are required only while building the package.
	Build Kind = 1
	// Dev dependencies are required only for development and tests.
	Dev Kind = 2
)

// Code returns the integer code used to store the kind.
func (k Kind) Code() int64 {
	return int64(k)
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Build:
		return "build"
	case Dev:
		return "dev"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromCode maps a stored kind code back to a Kind.
// Codes outside the known set are rejected so a bad row cannot silently
// masquerade as a normal dependency.
func KindFromCode(code int64) (Kind, error) {
	switch code {
	case 0:
		return Normal, nil
	case 1:
		return Build, nil
	case 2:
		return Dev, nil
	}
	return Normal, fmt.Errorf("unknown dependency kind code %d", code)
}

// ParseKind parses the wire name of a kind. The empty string defaults to
// Normal, matching a declaration that omits the field.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "normal":
		return Normal, nil
	case "build":
		return Build, nil
	case "dev":
		return Dev, nil
	}
	return Normal, fmt.Errorf("unknown dependency kind %q", s)
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Dependency is one declared dependency edge from a package version to a
// target package. The record stores only the target's internal id; callers
// supply the display name at encode time.
type Dependency struct {
	ID              int64
	VersionID       int64
	PackageID       int64
	Req             *semver.Constraints
	Optional        bool
	DefaultFeatures bool
	Features        []string
	Target          string // empty when the dependency applies to all targets
	Kind            Kind
}

// ReverseDependency is a dependency enriched with the name and download
// count of the package that declares it. It is produced only by
// reverse-lookup queries and is never persisted itself.
type ReverseDependency struct {
	Dependency
	PackageName string
	Downloads   int64
}

// NewDependency is a validated, storable dependency ready for insertion.
// The requirement has been re-serialized to its canonical string form.
type NewDependency struct {
	VersionID       int64
	PackageID       int64
	Req             string
	Optional        bool
	DefaultFeatures bool
	Features        []string
	Target          string
	Kind            Kind
}

// EncodableDependency is the public API shape of a dependency. The target
// package is identified by name, and downloads is zero unless the record
// comes from a reverse listing.
type EncodableDependency struct {
	ID              int64    `json:"id"`
	VersionID       int64    `json:"version_id"`
	Package         string   `json:"package"`
	Req             string   `json:"req"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Target          string   `json:"target,omitempty"`
	Kind            Kind     `json:"kind"`
	Downloads       int64    `json:"downloads"`
}

// IndexDependency is the shape consumed by the version-control index
// writer. Unlike other contexts, the kind is always stated explicitly.
type IndexDependency struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Features        []string `json:"features"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Target          string   `json:"target,omitempty"`
	Kind            Kind     `json:"kind"`
}

// Declaration is a raw client-submitted dependency declaration, as produced
// by the upload parser. Nothing in it has been validated.
type Declaration struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Target          string   `json:"target,omitempty"`
	Kind            string   `json:"kind,omitempty"`
}

// DependencyFromRow rebuilds a Dependency from its stored scalar fields.
// Stored rows were validated before they were written, so a requirement
// that no longer parses or a kind code outside the known set means the
// stored data is corrupt; both panic with a *CorruptRecordError rather
// than return an error.
func DependencyFromRow(id, versionID, packageID int64, req string, optional, defaultFeatures bool, features []string, target string, kindCode int64) Dependency {
	parsed, err := semver.NewConstraint(req)
	if err != nil {
		panic(&CorruptRecordError{ID: id, Field: "req", Detail: err.Error()})
	}
	kind, err := KindFromCode(kindCode)
	if err != nil {
		panic(&CorruptRecordError{ID: id, Field: "kind", Detail: err.Error()})
	}
	return Dependency{
		ID:              id,
		VersionID:       versionID,
		PackageID:       packageID,
		Req:             parsed,
		Optional:        optional,
		DefaultFeatures: defaultFeatures,
		Features:        features,
		Target:          target,
		Kind:            kind,
	}
}
