// Package policy loads the conflict and stage policies from YAML and keeps the active
// copy current while the service runs.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/conflicts"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/reconcile"
)

//go:embed default.yaml
var defaultYAML []byte

// Document is the full policy file.
type Document struct {
	Conflicts conflicts.Policy `yaml:"conflicts"`
	Reconcile reconcile.Policy `yaml:"reconcile"`
}

type fileDocument struct {
	Conflicts *conflicts.Policy `yaml:"conflicts"`
	Reconcile *reconcile.Policy `yaml:"reconcile"`
}

func (d Document) Validate() error {
	if err := d.Conflicts.Validate(); err != nil {
		return fmt.Errorf("conflicts: %w", err)
	}
	if err := d.Reconcile.Validate(); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

// Default returns the embedded policy.
func Default() Document {
	doc, err := parse(defaultYAML, Document{
		Conflicts: conflicts.Default(),
		Reconcile: reconcile.DefaultPolicy(),
	})
	if err != nil {
		panic(fmt.Sprintf("embedded policy is invalid: %v", err))
	}
	return doc
}

// Parse decodes a policy file. Sections missing from raw keep their default values.
func Parse(raw []byte) (Document, error) {
	return parse(raw, Default())
}

func parse(raw []byte, base Document) (Document, error) {
	var f fileDocument
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Document{}, fmt.Errorf("decode policy: %w", err)
	}
	doc := base
	if f.Conflicts != nil {
		doc.Conflicts = *f.Conflicts
	}
	if f.Reconcile != nil {
		doc.Reconcile = *f.Reconcile
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Load reads the policy at path; an empty path yields the embedded default.
func Load(path string) (Document, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return Document{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return doc, nil
}
