package agent

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"prdigest/server/internal/modules"
)

// ErrPersonaNotFound is returned by Registry.Lookup for unknown names.
var ErrPersonaNotFound = errors.New("persona not found")

// VerifyFunc checks a finished run. Its error is reported, not returned to
// the caller: the text has already been delivered.
type VerifyFunc func(ctx context.Context, res *RunResult) error

// Persona is a named agent configuration.
type Persona struct {
	Name         string
	DisplayName  string
	Instructions string
	Model        string
	Tools        *modules.Toolset
	Verify       VerifyFunc
}

// toolSpecs declares the persona's tools to the backend.
func (p *Persona) toolSpecs() []ToolSpec {
	tools := p.Tools.Tools()
	if len(tools) == 0 {
		return nil
	}
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		desc := t.Description
		if desc == "" {
			desc = t.Descriptions.English()
		}
		specs = append(specs, ToolSpec{Name: t.Name, Description: desc, Schema: t.InputSchema.JSONSchema()})
	}
	return specs
}

// Registry maps persona names to personas. It is built once and read-only
// afterwards.
type Registry struct {
	personas    map[string]*Persona
	defaultName string
}

// NewRegistry creates a registry whose default persona is defaultName.
func NewRegistry(defaultName string, personas ...*Persona) (*Registry, error) {
	r := &Registry{personas: make(map[string]*Persona, len(personas)), defaultName: defaultName}
	for _, p := range personas {
		if p == nil || p.Name == "" {
			return nil, errors.New("persona without name")
		}
		if _, dup := r.personas[p.Name]; dup {
			return nil, errors.Errorf("duplicate persona %q", p.Name)
		}
		r.personas[p.Name] = p
	}
	if _, ok := r.personas[defaultName]; !ok {
		return nil, errors.Errorf("default persona %q: %w", defaultName, ErrPersonaNotFound)
	}
	return r, nil
}

// Lookup returns the named persona; an empty name selects the default.
func (r *Registry) Lookup(name string) (*Persona, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.personas[name]
	if !ok {
		return nil, errors.Wrapf(ErrPersonaNotFound, "%q", name)
	}
	return p, nil
}

// Default returns the default persona name.
func (r *Registry) Default() string {
	return r.defaultName
}

// Names lists the registered persona names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
