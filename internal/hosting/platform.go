// Package hosting models the identity of remote project hosting platforms
// and the units of storage (repositories, wiki pages, certified projects)
// they host. Parsing is stateless; units are immutable values.
package hosting

import (
	"net/url"
	"strings"
)

// Platform identifies a remote hosting system by its network domain.
type Platform string

// Supported hosting platforms.
const (
	Appropedia  Platform = "appropedia.org"
	Codeberg    Platform = "codeberg.org"
	GitHub      Platform = "github.com"
	GitLab      Platform = "gitlab.com"
	GitLabOSE   Platform = "gitlab.opensourceecology.de"
	OSHWA       Platform = "oshwa.org"
	Thingiverse Platform = "thingiverse.com"
)

// Kind describes how a platform addresses the projects it hosts.
type Kind int

const (
	// KindForge addresses projects by owner/repo plus optional ref and path.
	KindForge Kind = iota + 1
	// KindWebByID addresses projects by a single opaque project identifier.
	KindWebByID
)

// All returns every supported platform, in stable order.
func All() []Platform {
	return []Platform{Appropedia, Codeberg, GitHub, GitLab, GitLabOSE, OSHWA, Thingiverse}
}

// Lookup resolves a platform by its domain name, as used in configuration
// and checkpoint keys.
func Lookup(name string) (Platform, bool) {
	for _, p := range All() {
		if string(p) == strings.ToLower(strings.TrimSpace(name)) {
			return p, true
		}
	}
	return "", false
}

// Kind reports the addressing family of the platform. The mapping is total
// over the supported platforms: each maps to exactly one kind.
func (p Platform) Kind() Kind {
	switch p {
	case Codeberg, GitHub, GitLab, GitLabOSE:
		return KindForge
	case Appropedia, OSHWA, Thingiverse:
		return KindWebByID
	}
	return 0
}

func (p Platform) String() string {
	return string(p)
}

// PlatformFromURL resolves the platform hosting the given URL from its
// domain, accepting the known aliases (www hosts, raw download hosts,
// certification subdomains).
func PlatformFromURL(rawURL string) (Platform, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &ParseError{URL: rawURL, Reason: "not a valid absolute http(s) URL"}
	}
	switch strings.ToLower(u.Hostname()) {
	case "appropedia.org", "www.appropedia.org":
		return Appropedia, nil
	case "codeberg.org":
		return Codeberg, nil
	case "github.com", "raw.githubusercontent.com":
		return GitHub, nil
	case "gitlab.com":
		return GitLab, nil
	case "gitlab.opensourceecology.de":
		return GitLabOSE, nil
	case "oshwa.org", "certification.oshwa.org":
		return OSHWA, nil
	case "thingiverse.com", "www.thingiverse.com":
		return Thingiverse, nil
	}
	return "", &ParseError{URL: rawURL, Reason: "unknown hosting platform"}
}
