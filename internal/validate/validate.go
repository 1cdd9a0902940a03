// Package validate checks that fetched manifest content is well-formed for
// its declared format.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oseg/krawler/internal/manifest"
)

// Manifest checks the basic content rules and then parses the payload with
// the format's parser. A nil error means the manifest is syntactically valid.
func Manifest(m *manifest.Manifest) error {
	if m == nil {
		return fmt.Errorf("no manifest")
	}
	if manifest.IsEmpty(m.Content) {
		return fmt.Errorf("manifest is empty")
	}
	if manifest.IsBinary(m.Content) {
		return fmt.Errorf("manifest contains binary content")
	}
	switch m.Format {
	case manifest.JSON, manifest.JSONLD:
		var doc map[string]any
		if err := json.Unmarshal(m.Content, &doc); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	case manifest.TOML:
		var doc map[string]any
		if err := toml.Unmarshal(m.Content, &doc); err != nil {
			return fmt.Errorf("invalid TOML: %w", err)
		}
	case manifest.YAML:
		var doc map[string]any
		if err := yaml.Unmarshal(m.Content, &doc); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
	case manifest.Turtle:
		// No Turtle parser is wired; the content checks above still apply.
	default:
		return fmt.Errorf("unknown manifest format %q", m.Format)
	}
	return nil
}

// File reads a manifest file from disk, checks its file name against the
// acceptance rules and validates its content.
func File(path string) (*manifest.Manifest, error) {
	if !manifest.IsAcceptedName(path) {
		return nil, fmt.Errorf("%q is not an accepted manifest file name", path)
	}
	format, err := manifest.FormatFromExt(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &manifest.Manifest{Content: content, Format: format}
	if err := Manifest(m); err != nil {
		return nil, err
	}
	return m, nil
}
