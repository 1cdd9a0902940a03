package hosting

import (
	"fmt"
	"net/url"
	"strings"
)

// WebUnit identifies a project on a flat, web-hosted platform by a single
// opaque project identifier.
type WebUnit struct {
	Host      Platform
	ProjectID string
}

// Platform implements UnitID.
func (u WebUnit) Platform() Platform { return u.Host }

// Valid reports whether platform and project id are both set.
func (u WebUnit) Valid() bool { return u.Host != "" && u.ProjectID != "" }

// Versioned always reports false; web-by-id platforms carry no ref notion.
func (u WebUnit) Versioned() bool { return false }

// PathKey implements UnitID.
func (u WebUnit) PathKey() string {
	return fmt.Sprintf("%s/%s", u.Host, u.ProjectID)
}

func (u WebUnit) String() string { return u.PathKey() }

// CanonicalURL reconstructs the browsable project URL.
func (u WebUnit) CanonicalURL() (string, error) {
	if !u.Valid() {
		return "", fmt.Errorf("incomplete web unit %q", u.PathKey())
	}
	switch u.Host {
	case Appropedia:
		return fmt.Sprintf("https://www.appropedia.org/%s", u.ProjectID), nil
	case OSHWA:
		return fmt.Sprintf("https://certification.oshwa.org/%s.html", strings.ToLower(u.ProjectID)), nil
	case Thingiverse:
		return fmt.Sprintf("https://www.thingiverse.com/thing:%s", u.ProjectID), nil
	}
	return "", fmt.Errorf("%w: no canonical URL form for %q", ErrUnsupported, u.Host)
}

// DownloadURL fails for wiki-like platforms; only Thingiverse exposes
// project-relative downloads.
func (u WebUnit) DownloadURL(path string) (string, error) {
	switch u.Host {
	case Thingiverse:
		canonical, err := u.CanonicalURL()
		if err != nil {
			return "", err
		}
		return canonical + pathOpt(path), nil
	}
	return "", fmt.Errorf("%w: %q has no raw-file downloads", ErrUnsupported, u.Host)
}

// ParseWebURL parses a project URL on a web-by-id platform. The remainder is
// always empty; it is returned for symmetry with ParseForgeURL.
func ParseWebURL(rawURL string) (WebUnit, string, error) {
	platform, err := PlatformFromURL(rawURL)
	if err != nil {
		return WebUnit{}, "", err
	}
	if platform.Kind() != KindWebByID {
		return WebUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("%s is a forge platform, parse a forge unit instead", platform)}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return WebUnit{}, "", &ParseError{URL: rawURL, Reason: err.Error()}
	}
	segs := splitPath(u.Path)

	var projectID string
	switch platform {
	case Appropedia:
		// example: https://www.appropedia.org/Open_Source_Lab-Grade_Scales
		projectID = strings.Trim(u.Path, "/")
		if projectID == "" {
			return WebUnit{}, "", &ParseError{URL: rawURL, Reason: "Appropedia project URLs carry the page title as path"}
		}
	case OSHWA:
		// example: https://certification.oshwa.org/br000010.html
		if len(segs) != 1 {
			return WebUnit{}, "", &ParseError{URL: rawURL, Reason: "OSHWA project URLs have exactly one path segment"}
		}
		projectID = strings.TrimSuffix(segs[0], ".html")
	case Thingiverse:
		// example: https://www.thingiverse.com/thing:3062487
		if len(segs) < 1 {
			return WebUnit{}, "", &ParseError{URL: rawURL, Reason: "Thingiverse project URLs have at least one path segment"}
		}
		prefix, id, ok := strings.Cut(segs[0], ":")
		if !ok || prefix != "thing" || id == "" {
			return WebUnit{}, "", &ParseError{URL: rawURL, Reason: "not a thing URL"}
		}
		projectID = id
	default:
		return WebUnit{}, "", &ParseError{URL: rawURL, Reason: fmt.Sprintf("unhandled web platform %q", platform)}
	}
	return WebUnit{Host: platform, ProjectID: projectID}, "", nil
}

// ParseWebURLNoPath parses a project-level web URL. Web grammars never carry
// a remainder, so this only re-labels ParseWebURL for call-site symmetry.
func ParseWebURLNoPath(rawURL string) (WebUnit, error) {
	unit, _, err := ParseWebURL(rawURL)
	return unit, err
}
