package flowfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wattlebot/wattle/pkg/adapters/memory"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// File is the on-disk flow definition: the block graph plus the declared
// context variables and contact settings.
type File struct {
	// Name labels the flow for logs and tooling.
	Name string `yaml:"name,omitempty"`

	Blocks      []domain.Block      `yaml:"blocks"`
	ContextVars []domain.ContextVar `yaml:"context_vars,omitempty"`

	// Contact settings exposed to interpolation as {contact.*} tokens.
	Contact map[string]any `yaml:"contact,omitempty"`
}

// Load reads and parses a YAML flow file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow file: %w", err)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("flow file %s: %w", path, err)
	}
	return file, nil
}

// Parse decodes a YAML flow definition from a reader.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if len(file.Blocks) == 0 {
		return nil, fmt.Errorf("flow declares no blocks")
	}
	return &file, nil
}

// BlockSource builds an in-memory block source from the parsed flow.
func (f *File) BlockSource() (*memory.BlockSource, error) {
	return memory.NewBlockSource(f.Blocks, f.ContextVars...)
}

// Settings exposes the contact section as a settings provider.
func (f *File) Settings() ports.SettingsProvider {
	return ports.StaticSettings{"contact": f.Contact}
}
