package hosting

import "errors"

// ParseURL parses a project URL into the platform-appropriate unit variant
// without the caller knowing the platform kind: the forge grammar is tried
// first, falling back to web-by-id on a parse error.
func ParseURL(rawURL string) (UnitID, string, error) {
	unit, remainder, err := ParseForgeURL(rawURL)
	if err == nil {
		return unit, remainder, nil
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		return nil, "", err
	}
	webUnit, webRemainder, err := ParseWebURL(rawURL)
	if err != nil {
		return nil, "", err
	}
	return webUnit, webRemainder, nil
}

// ParseURLNoPath parses a project-level URL of either kind, rejecting URLs
// that address a file within the unit.
func ParseURLNoPath(rawURL string) (UnitID, error) {
	unit, remainder, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if remainder != "" {
		return nil, &ParseError{URL: rawURL, Reason: "project URL must not address a file"}
	}
	return unit, nil
}
