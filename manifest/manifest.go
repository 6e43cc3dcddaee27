// Package manifest handles rcode.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "rcode.toml"

// Manifest represents an rcode.toml configuration.
type Manifest struct {
	Project Project           `toml:"project"`
	Trace   TraceConfig       `toml:"trace"`
	Image   ImageConfig       `toml:"image"`
	Opcodes map[string]string `toml:"opcodes"`

	// Dir is the directory containing the rcode.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// TraceConfig configures trace output.
type TraceConfig struct {
	DetailOIDs bool `toml:"detail-oids"`
}

// ImageConfig configures the image store.
type ImageConfig struct {
	Store string `toml:"store"`
}

// Load parses the rcode.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Relative paths inside it
// are resolved against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if m.Image.Store == "" {
		m.Image.Store = filepath.Join(".rcode", "images.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an rcode.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OpcodeNames converts the [opcodes] table into an opcode-to-name map.
// Keys are decimal or 0x-prefixed hexadecimal and must fit 16 bits.
func (m *Manifest) OpcodeNames() (map[uint16]string, error) {
	keys := make([]string, 0, len(m.Opcodes))
	for k := range m.Opcodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[uint16]string, len(m.Opcodes))
	for _, k := range keys {
		op, err := strconv.ParseUint(k, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("opcode %q in %s: %w", k, FileName, err)
		}
		if prev, dup := names[uint16(op)]; dup {
			return nil, fmt.Errorf("opcode %d named twice in %s (%q and %q)", op, FileName, prev, m.Opcodes[k])
		}
		names[uint16(op)] = m.Opcodes[k]
	}
	return names, nil
}

// StorePath returns the absolute path of the image store.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Image.Store) {
		return m.Image.Store
	}
	return filepath.Join(m.Dir, m.Image.Store)
}
