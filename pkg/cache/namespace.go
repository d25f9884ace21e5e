package cache

import "strings"

// Logical cache names. The API namespace is reserved and currently only
// created and pruned, never read.
const (
	DefaultShellName = "museum-of-moments"
	DefaultImageName = "museum-images"
	DefaultAPIName   = "museum-api"
)

// Namespace is a versioned cache namespace identifier.
type Namespace struct {
	Logical string
	Version string
}

// String returns the identifier: {logical}-{version}.
func (n Namespace) String() string {
	return n.Logical + "-" + n.Version
}

// BelongsToVersion reports whether the namespace identifier name embeds
// version as its version tag. The check is uniform across logical names.
func BelongsToVersion(name, version string) bool {
	if version == "" {
		return false
	}
	return strings.HasSuffix(name, "-"+version)
}
