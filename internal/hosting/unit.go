package hosting

import "strings"

// UnitID identifies one unit of project storage on a hosting platform, for
// example a repository, a manifest file within a repository, or a certified
// project entry. The two implementations form a closed sum: ForgeUnit for
// owner/repo addressing, WebUnit for flat by-id addressing. Units are never
// mutated; derive operations return copies.
type UnitID interface {
	// Platform names the hosting system the unit lives on.
	Platform() Platform
	// PathKey returns a filesystem-safe identity path, unique per unit.
	PathKey() string
	// Valid reports whether the platform-appropriate required fields are set.
	Valid() bool
	// Versioned reports whether the unit pins a specific ref.
	Versioned() bool
	// CanonicalURL reconstructs the browsable project URL.
	CanonicalURL() (string, error)
	// DownloadURL builds a raw-content URL for the given in-unit path. It
	// fails with ErrUnsupported on platforms without raw-file access.
	DownloadURL(path string) (string, error)

	String() string
}

// splitPath breaks a URL path into its non-empty segments.
func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinSegments(segs []string) string {
	return strings.Join(segs, "/")
}

// pathOpt renders an optional trailing path element, mirroring how identity
// paths concatenate: empty values vanish, others gain a leading slash.
func pathOpt(s string) string {
	if s == "" {
		return ""
	}
	return "/" + s
}
