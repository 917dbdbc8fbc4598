package core

// featureList returns a non-nil feature slice. Both outbound encodings
// render an empty feature set as [], never null.
func featureList(features []string) []string {
	if features == nil {
		return []string{}
	}
	return features
}

// IndexEncode renders the dependency for the version-control index writer.
// The record stores only the target package's id, so the caller supplies
// its display name.
func (d Dependency) IndexEncode(name string) IndexDependency {
	return IndexDependency{
		Name:            name,
		Req:             d.Req.String(),
		Features:        featureList(d.Features),
		Optional:        d.Optional,
		DefaultFeatures: d.DefaultFeatures,
		Target:          d.Target,
		Kind:            d.Kind,
	}
}

// Encodable renders the public API shape of the dependency. downloads need
// only be supplied when building a reverse-dependency listing; pass 0 for
// forward listings, where the API treats missing popularity context as
// zero popularity.
func (d Dependency) Encodable(name string, downloads int64) EncodableDependency {
	return EncodableDependency{
		ID:              d.ID,
		VersionID:       d.VersionID,
		Package:         name,
		Req:             d.Req.String(),
		Optional:        d.Optional,
		DefaultFeatures: d.DefaultFeatures,
		Features:        featureList(d.Features),
		Target:          d.Target,
		Kind:            d.Kind,
		Downloads:       downloads,
	}
}

// Encodable renders a reverse dependency. The name and downloads describe
// the package declaring the dependency, not its target.
func (rd ReverseDependency) Encodable() EncodableDependency {
	return rd.Dependency.Encodable(rd.PackageName, rd.Downloads)
}
