package depstore

import (
	"fmt"
	"strings"
)

// URLs builds web locations for packages hosted on the registry.
type URLs struct {
	baseURL   string
	ecosystem string
}

// NewURLs creates a URL builder for a registry served at baseURL.
// ecosystem is the PURL type the registry publishes under (e.g. "cargo").
func NewURLs(baseURL, ecosystem string) *URLs {
	return &URLs{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		ecosystem: ecosystem,
	}
}

// Registry returns the package's page on the registry.
func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/packages/%s/%s", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/packages/%s", u.baseURL, name)
}

// Download returns the archive download location for a version.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/v1/packages/%s/%s/download", u.baseURL, name, version)
}

// Documentation returns the documentation location for a package.
func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/docs/%s/%s", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/docs/%s", u.baseURL, name)
}

// PURL returns the Package URL identifying a package or version.
func (u *URLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:%s/%s@%s", u.ecosystem, name, version)
	}
	return fmt.Sprintf("pkg:%s/%s", u.ecosystem, name)
}
