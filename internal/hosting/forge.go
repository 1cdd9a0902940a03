package hosting

import (
	"fmt"
	"net/url"
	"strings"
)

// ForgeUnit identifies a project on a forge platform by owner and repository,
// optionally narrowed by a nested group path (GitLab), a ref (branch, tag or
// commit) and an in-repo file path.
type ForgeUnit struct {
	Host  Platform
	Owner string
	Group string
	Repo  string
	Ref   string
	Path  string
}

// Platform implements UnitID.
func (u ForgeUnit) Platform() Platform { return u.Host }

// Valid reports whether platform, owner and repo are all set.
func (u ForgeUnit) Valid() bool {
	return u.Host != "" && u.Owner != "" && u.Repo != ""
}

// Versioned reports whether the unit pins a ref.
func (u ForgeUnit) Versioned() bool { return u.Ref != "" }

// WithRef returns a copy of the unit pinned to the given ref.
func (u ForgeUnit) WithRef(ref string) ForgeUnit {
	u.Ref = ref
	return u
}

// WithPath returns a copy of the unit pointing at the given in-repo path.
func (u ForgeUnit) WithPath(path string) ForgeUnit {
	u.Path = path
	return u
}

// PathKey implements UnitID.
func (u ForgeUnit) PathKey() string {
	return fmt.Sprintf("%s/%s%s/%s%s%s",
		u.Host, u.Owner, pathOpt(u.Group), u.Repo, pathOpt(u.Ref), pathOpt(u.Path))
}

func (u ForgeUnit) String() string { return u.PathKey() }

// CanonicalURL reconstructs the browsable project URL.
func (u ForgeUnit) CanonicalURL() (string, error) {
	if !u.Valid() {
		return "", fmt.Errorf("incomplete forge unit %q", u.PathKey())
	}
	switch u.Host {
	case GitHub, Codeberg:
		return fmt.Sprintf("https://%s/%s/%s", u.Host, u.Owner, u.Repo), nil
	case GitLab, GitLabOSE:
		return fmt.Sprintf("https://%s/%s%s/%s", u.Host, u.Owner, pathOpt(u.Group), u.Repo), nil
	}
	return "", fmt.Errorf("%w: no canonical URL form for %q", ErrUnsupported, u.Host)
}

// DownloadURL builds the raw-content URL for the given in-repo path, falling
// back to the unit's own path. Unversioned units download from HEAD.
func (u ForgeUnit) DownloadURL(path string) (string, error) {
	if !u.Valid() {
		return "", fmt.Errorf("incomplete forge unit %q", u.PathKey())
	}
	if path == "" {
		path = u.Path
	}
	if path == "" {
		return "", fmt.Errorf("forge unit %q: no file path to download", u.PathKey())
	}
	ref := u.Ref
	if ref == "" {
		ref = "HEAD"
	}
	switch u.Host {
	case GitHub:
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", u.Owner, u.Repo, ref, path), nil
	case Codeberg:
		return fmt.Sprintf("https://codeberg.org/%s/%s/raw/%s/%s", u.Owner, u.Repo, ref, path), nil
	case GitLab, GitLabOSE:
		return fmt.Sprintf("https://%s/%s%s/%s/-/raw/%s/%s", u.Host, u.Owner, pathOpt(u.Group), u.Repo, ref, path), nil
	}
	return "", fmt.Errorf("%w: no raw download form for %q", ErrUnsupported, u.Host)
}

// ParseForgeURL parses a forge project or file-view URL into a ForgeUnit and
// the in-repo file path remainder, if any. The remainder is returned
// separately so project-level callers can reject it.
func ParseForgeURL(rawURL string) (ForgeUnit, string, error) {
	platform, err := PlatformFromURL(rawURL)
	if err != nil {
		return ForgeUnit{}, "", err
	}
	if platform.Kind() != KindForge {
		return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("%s is not a forge platform", platform)}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: err.Error()}
	}
	segs := splitPath(u.Path)

	if strings.EqualFold(u.Hostname(), "raw.githubusercontent.com") {
		return parseRawGitHub(rawURL, segs)
	}
	switch platform {
	case GitHub, Codeberg:
		return parseGitHubLike(platform, rawURL, segs)
	case GitLab, GitLabOSE:
		return parseGitLabLike(platform, rawURL, segs)
	}
	return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("unhandled forge platform %q", platform)}
}

// ParseForgeURLNoPath parses a project-level forge URL, rejecting URLs that
// address a file within the repository.
func ParseForgeURLNoPath(rawURL string) (ForgeUnit, error) {
	unit, remainder, err := ParseForgeURL(rawURL)
	if err != nil {
		return ForgeUnit{}, err
	}
	if remainder != "" {
		return ForgeUnit{}, &ParseError{URL: rawURL, Reason: "project URL must not address a file"}
	}
	return unit, nil
}

// format: https://raw.githubusercontent.com/{owner}/{repo}/{ref}/{path}
func parseRawGitHub(rawURL string, segs []string) (ForgeUnit, string, error) {
	if len(segs) < 2 {
		return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: "raw GitHub URLs need owner and repository"}
	}
	unit := ForgeUnit{Host: GitHub, Owner: segs[0], Repo: segs[1]}
	if len(segs) >= 3 {
		unit.Ref = segs[2]
	}
	var remainder string
	if len(segs) > 3 {
		remainder = joinSegments(segs[3:])
	}
	return unit, remainder, nil
}

// formats:
//
//	https://github.com/{owner}/{repo}
//	https://github.com/{owner}/{repo}/(tree|blob|raw)/{ref}/{path...}
//	https://github.com/{owner}/{repo}/releases/tag/{ref}
//	https://github.com/{owner}/{repo}/commit/{ref}
func parseGitHubLike(platform Platform, rawURL string, segs []string) (ForgeUnit, string, error) {
	if len(segs) < 2 {
		return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("not a valid %s project URL", platform)}
	}
	unit := ForgeUnit{Host: platform, Owner: segs[0], Repo: segs[1]}
	rest := segs[2:]
	var remainder string
	switch {
	case len(rest) >= 2 && isRefMarker(rest[0]):
		unit.Ref = rest[1]
		if len(rest) > 2 {
			remainder = joinSegments(rest[2:])
		}
	case len(rest) >= 3 && rest[0] == "releases" && rest[1] == "tag":
		unit.Ref = rest[2]
	case len(rest) >= 2 && rest[0] == "commit":
		unit.Ref = rest[1]
	case len(rest) > 0:
		remainder = joinSegments(rest)
	}
	return unit, remainder, nil
}

// formats (nested groups supported, separated from the view part by "-"):
//
//	https://gitlab.com/{owner}/{groups...}/{repo}
//	https://gitlab.com/{owner}/{groups...}/{repo}/-/(tree|blob|raw)/{ref}/{path...}
//	https://gitlab.com/{owner}/{groups...}/{repo}/-/(commit|tags)/{ref}
//
// The last "-" segment wins as the marker, so ambiguous group names keep the
// longest project path.
func parseGitLabLike(platform Platform, rawURL string, segs []string) (ForgeUnit, string, error) {
	marker := -1
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "-" {
			marker = i
			break
		}
	}
	proj := segs
	var rest []string
	if marker >= 0 {
		proj = segs[:marker]
		rest = segs[marker+1:]
	}
	if len(proj) < 2 {
		return ForgeUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("not a valid %s project URL", platform)}
	}
	unit := ForgeUnit{
		Host:  platform,
		Owner: proj[0],
		Group: joinSegments(proj[1 : len(proj)-1]),
		Repo:  proj[len(proj)-1],
	}
	var remainder string
	if len(rest) >= 2 {
		switch {
		case isRefMarker(rest[0]):
			unit.Ref = rest[1]
			if len(rest) > 2 {
				remainder = joinSegments(rest[2:])
			}
		case rest[0] == "commit" || rest[0] == "tags":
			unit.Ref = rest[1]
		}
	}
	return unit, remainder, nil
}

func isRefMarker(seg string) bool {
	return seg == "tree" || seg == "blob" || seg == "raw"
}
