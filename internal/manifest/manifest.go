// Package manifest models open-hardware manifest files and the acceptance
// rules adapters apply before downloading candidate files.
package manifest

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Format identifies the serialization of a manifest file.
type Format string

const (
	JSON   Format = "json"
	JSONLD Format = "jsonld"
	TOML   Format = "toml"
	Turtle Format = "ttl"
	YAML   Format = "yml"
)

// FormatFromExt maps a file extension (with or without a leading dot) to a
// Format. "yaml" is an alias for the canonical "yml".
func FormatFromExt(ext string) (Format, error) {
	e := strings.ToLower(strings.TrimPrefix(ext, "."))
	switch e {
	case "json":
		return JSON, nil
	case "jsonld":
		return JSONLD, nil
	case "toml":
		return TOML, nil
	case "ttl":
		return Turtle, nil
	case "yml", "yaml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown manifest file extension %q", ext)
}

func (f Format) String() string { return string(f) }

// ContentType returns the MIME type used when archiving a manifest of this
// format.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case JSONLD:
		return "application/ld+json"
	case TOML:
		return "application/toml"
	case Turtle:
		return "text/turtle"
	case YAML:
		return "text/yaml"
	}
	return "application/octet-stream"
}

// SourcingProcedure records how a project's metadata was obtained.
type SourcingProcedure string

const (
	// SourcingAPI means the hosting platform's API was crawled and a
	// manifest synthesized from it.
	SourcingAPI SourcingProcedure = "Api"
	// SourcingManifest means the project supplies its own manifest file.
	SourcingManifest SourcingProcedure = "Manifest"
	// SourcingGeneratedManifest means the hosting platform generates the
	// manifest.
	SourcingGeneratedManifest SourcingProcedure = "GeneratedManifest"
	// SourcingDirect means the project supplies its metadata directly.
	SourcingDirect SourcingProcedure = "Direct"
)

func (s SourcingProcedure) String() string { return string(s) }

var (
	manifestNameRe   = regexp.MustCompile(`^(.+\.)?okh([_\-:.][0-9a-zA-Z:._\-]+)?$`)
	manifestSuffixRe = regexp.MustCompile(`^\.(json|toml|ya?ml)$`)
)

// IsAcceptedName reports whether the file name (the last path element) looks
// like a downloadable manifest: an "okh"-based stem with a supported data
// extension. Search hits that fail this check are skipped without a request.
func IsAcceptedName(filePath string) bool {
	base := path.Base(filePath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return manifestNameRe.MatchString(stem) && manifestSuffixRe.MatchString(ext)
}

// IsEmpty reports whether the content has no bytes.
func IsEmpty(content []byte) bool {
	return len(content) == 0
}

// IsBinary reports whether the content contains a null byte, the cheap test
// for files that are not text at all.
func IsBinary(content []byte) bool {
	return bytes.ContainsRune(content, 0)
}

// Manifest is the raw content of one manifest file plus its format.
type Manifest struct {
	Content []byte
	Format  Format
}

// Valid reports whether the manifest carries usable text content.
func (m Manifest) Valid() bool {
	return !IsEmpty(m.Content) && !IsBinary(m.Content) && m.Format != ""
}
