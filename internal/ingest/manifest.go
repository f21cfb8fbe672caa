package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// manifestSchema is the CUE contract a manifest must satisfy after YAML
// decoding. Strict decoding catches unknown fields; the schema catches
// missing and empty ones.
const manifestSchema = `
#Source: {
	name: string & !=""
	send: string & !=""
	open: string & !=""
}

sources:  [#Source, ...#Source]
contacts: string & !=""
output?:  string & !=""
`

// Source is one send/open file pair within a batch. Name becomes the sender
// label on every record ingested from the pair.
type Source struct {
	Name string `yaml:"name" json:"name"`
	Send string `yaml:"send" json:"send"`
	Open string `yaml:"open" json:"open"`
}

// Manifest describes one batch: the sources to reconcile, the shared
// contact directory, and an optional output directory override.
type Manifest struct {
	Sources  []Source `yaml:"sources" json:"sources"`
	Contacts string   `yaml:"contacts" json:"contacts"`
	Output   string   `yaml:"output,omitempty" json:"output,omitempty"`
}

// LoadManifest reads, parses, and validates a manifest file. File paths
// inside the manifest are resolved relative to the manifest's directory,
// and every referenced file must exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	// Reject unknown fields (catches typos like "source:" vs "sources:").
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	base := filepath.Dir(path)
	for i := range m.Sources {
		m.Sources[i].Send = resolvePath(base, m.Sources[i].Send)
		m.Sources[i].Open = resolvePath(base, m.Sources[i].Open)
	}
	m.Contacts = resolvePath(base, m.Contacts)
	if m.Output != "" {
		m.Output = resolvePath(base, m.Output)
	}

	for i, src := range m.Sources {
		if err := statFile(src.Send); err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, src.Name, err)
		}
		if err := statFile(src.Open); err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, src.Name, err)
		}
	}
	if err := statFile(m.Contacts); err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}

	return &m, nil
}

// validateManifest unifies the decoded manifest with the embedded CUE
// schema. CUE reports every violation, not just the first.
func validateManifest(m *Manifest) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(manifestSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling manifest schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(m))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}

	// Source names must be unique: they become the sender label and the
	// report filter key.
	seen := make(map[string]bool, len(m.Sources))
	for i, src := range m.Sources {
		if seen[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		seen[src.Name] = true
	}
	return nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("not a file: %s", path)
	}
	return nil
}
