package hosting

import (
	"errors"
	"fmt"
)

// ParseError reports a URL that does not match any known hosting grammar.
// It marks a caller input problem; parse failures are never retried.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse hosting URL %q: %s", e.URL, e.Reason)
}

// ErrUnsupported marks URL constructions a platform kind cannot provide,
// such as raw-file downloads from wiki-like platforms.
var ErrUnsupported = errors.New("operation not supported by hosting platform")
