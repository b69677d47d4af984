// Package wiring adapts declarative YAML manifests into a depwell registry.
// The engine core never sees YAML; this package produces normalized
// descriptors only.
package wiring

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/depwell/depwell"
)

// Manifest is the top-level declaration document.
type Manifest struct {
	Providers []ProviderSpec `yaml:"providers"`
}

// ProviderSpec declares one provider instance: its name, the builder that
// constructs it, and the providers it depends on keyed by parameter name.
type ProviderSpec struct {
	Name      string            `yaml:"name"`
	Uses      string            `yaml:"uses"`
	Kind      string            `yaml:"kind,omitempty"`  // value | resource (defaults to the builder's kind)
	Mode      string            `yaml:"mode,omitempty"`  // sync | async
	Cache     string            `yaml:"cache,omitempty"` // resolution | transient
	DependsOn map[string]string `yaml:"depends_on,omitempty"`
	Options   map[string]any    `yaml:"options,omitempty"`
}

// Builder constructs instances for every provider spec that uses it. Build
// receives the spec's static options and the resolved dependency arguments;
// a nil-cleanup result is a plain value, a non-nil cleanup makes the
// provider a resource.
type Builder struct {
	Resource bool
	Mode     depwell.Mode
	Build    depwell.FactoryFunc
}

// Catalog maps builder names to builders.
type Catalog struct {
	builders map[string]Builder
}

// NewCatalog creates an empty builder catalog.
func NewCatalog() *Catalog {
	return &Catalog{builders: make(map[string]Builder)}
}

// Register adds a named builder. Re-registering a name fails.
func (c *Catalog) Register(name string, b Builder) error {
	if name == "" {
		return fmt.Errorf("register builder: empty name")
	}
	if b.Build == nil {
		return fmt.Errorf("register builder %q: nil build func", name)
	}
	if _, exists := c.builders[name]; exists {
		return fmt.Errorf("register builder %q: already registered", name)
	}
	c.builders[name] = b
	return nil
}

// UnknownBuilderError means a provider spec names a builder not present in
// the catalog.
type UnknownBuilderError struct {
	Provider string
	Builder  string
}

func (e *UnknownBuilderError) Error() string {
	return fmt.Sprintf("provider %q uses unknown builder %q", e.Provider, e.Builder)
}

// Load decodes a manifest from r.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for i, p := range m.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("manifest provider %d: missing name", i)
		}
		if p.Uses == "" {
			return nil, fmt.Errorf("manifest provider %q: missing uses", p.Name)
		}
	}
	return &m, nil
}

// Compile resolves every provider spec against the catalog and registers the
// result into a fresh depwell registry. Unknown dependency names surface
// later, at plan time, as UnknownDependencyError.
func Compile(m *Manifest, catalog *Catalog) (*depwell.Registry, error) {
	reg := depwell.NewRegistry()

	for _, spec := range m.Providers {
		builder, ok := catalog.builders[spec.Uses]
		if !ok {
			return nil, &UnknownBuilderError{Provider: spec.Name, Builder: spec.Uses}
		}

		desc, err := descriptorFor(spec, builder)
		if err != nil {
			return nil, err
		}

		if err := reg.RegisterFactory(desc, bindOptions(builder.Build, spec.Options)); err != nil {
			return nil, fmt.Errorf("manifest provider %q: %w", spec.Name, err)
		}
	}

	return reg, nil
}

func descriptorFor(spec ProviderSpec, builder Builder) (depwell.ProviderDescriptor, error) {
	desc := depwell.ProviderDescriptor{
		Identity:   depwell.Identity(spec.Name),
		Mode:       builder.Mode,
		CacheScope: depwell.PerResolution,
	}

	if builder.Resource {
		desc.Kind = depwell.KindResource
	}
	switch spec.Kind {
	case "":
	case "value":
		desc.Kind = depwell.KindValue
	case "resource":
		desc.Kind = depwell.KindResource
	default:
		return desc, fmt.Errorf("manifest provider %q: invalid kind %q", spec.Name, spec.Kind)
	}

	switch spec.Mode {
	case "":
	case "sync":
		desc.Mode = depwell.ModeSync
	case "async":
		desc.Mode = depwell.ModeAsync
	default:
		return desc, fmt.Errorf("manifest provider %q: invalid mode %q", spec.Name, spec.Mode)
	}

	switch spec.Cache {
	case "", "resolution":
	case "transient":
		desc.CacheScope = depwell.Transient
	default:
		return desc, fmt.Errorf("manifest provider %q: invalid cache %q", spec.Name, spec.Cache)
	}

	// Deterministic dependency order regardless of YAML map iteration.
	params := make([]string, 0, len(spec.DependsOn))
	for param := range spec.DependsOn {
		params = append(params, param)
	}
	sort.Strings(params)
	for _, param := range params {
		desc.Dependencies = append(desc.Dependencies, depwell.Depends(param, depwell.Identity(spec.DependsOn[param])))
	}

	return desc, nil
}

// optionsKey is the reserved argument name carrying a spec's static options
// into its builder.
const optionsKey = "$options"

// Options extracts the manifest options from a builder's arguments.
func Options(args depwell.Args) map[string]any {
	if args == nil {
		return nil
	}
	opts, _ := args[optionsKey].(map[string]any)
	return opts
}

func bindOptions(build depwell.FactoryFunc, options map[string]any) depwell.FactoryFunc {
	if options == nil {
		return build
	}
	return func(ctx context.Context, args depwell.Args) (any, depwell.Cleanup, error) {
		bound := make(depwell.Args, len(args)+1)
		for k, v := range args {
			bound[k] = v
		}
		bound[optionsKey] = options
		return build(ctx, bound)
	}
}
