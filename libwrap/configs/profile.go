package configs

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntryKind is the type of filesystem entry a binding or seed refers to.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// UnmarshalYAML accepts "file", "directory" and the short "dir".
func (k *EntryKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "dir", "directory":
		*k = KindDirectory
	case "file":
		*k = KindFile
	default:
		return fmt.Errorf("line %d: unknown entry kind %q", value.Line, s)
	}
	return nil
}

// Profile is the declarative description of a game server: which parts of
// its installation must be visible under the data root, which must be
// writable, and which state is seeded on first run.
type Profile struct {
	// Name identifies the profile on the command line.
	Name string `yaml:"name" json:"name"`

	// Description is a one-line summary shown by "gamewrap profiles".
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Executable is the default server executable. Relative paths are
	// resolved inside the data root. Empty means the executable must be
	// given on the command line.
	Executable string `yaml:"executable,omitempty" json:"executable,omitempty"`

	// Passthrough entries are bound read-only from the installation onto
	// the identically named path in the data root.
	Passthrough []Entry `yaml:"passthrough,omitempty" json:"passthrough,omitempty"`

	// Overlays expose a whole installation subtree under the data root
	// while keeping a few nested locations writable.
	Overlays []Overlay `yaml:"overlays,omitempty" json:"overlays,omitempty"`

	// Redirects bind a data root directory over the same path inside the
	// installation, for servers that insist on writing next to their
	// binaries.
	Redirects []Entry `yaml:"redirects,omitempty" json:"redirects,omitempty"`

	// Config is the configuration directory seeded once from the
	// installation.
	Config string `yaml:"config,omitempty" json:"config,omitempty"`

	// Seeds are additional artifacts copied once from the installation.
	Seeds []Entry `yaml:"seeds,omitempty" json:"seeds,omitempty"`
}

// Entry is a single path relative to the installation and data roots.
type Entry struct {
	Path string    `yaml:"path" json:"path"`
	Kind EntryKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Optional entries whose installation side is missing are skipped
	// instead of failing the launch.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Overlay is an installation subtree that is recursively bound onto the
// data root after its Writable sub-locations were redirected to the data
// root.
type Overlay struct {
	Path     string   `yaml:"path" json:"path"`
	Writable []string `yaml:"writable,omitempty" json:"writable,omitempty"`
}

// UnmarshalYAML allows entries to be written as a bare path, in which case
// they are directories.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Path = value.Value
		e.Kind = KindDirectory
		return nil
	}
	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Kind == "" {
		p.Kind = KindDirectory
	}
	*e = Entry(p)
	return nil
}

//go:embed profiles/*.yaml
var builtinFS embed.FS

// ParseProfile decodes a single YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Builtin returns the embedded profile called name.
func Builtin(name string) (*Profile, error) {
	data, err := builtinFS.ReadFile(path.Join("profiles", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return ParseProfile(data)
}

// BuiltinNames lists the embedded profiles in alphabetical order.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
