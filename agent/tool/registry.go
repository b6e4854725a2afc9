package tool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

var ErrUnknownTool = errors.New("unknown tool")

// Registry indexes tool declarations by name. It is built once and read-only after.
type Registry struct {
	byName map[string]Config
	names  []string
	infos  map[string]*schema.ToolInfo
}

var (
	defaultRegistry *Registry
	loadOnce        sync.Once
)

// Load returns the process-wide registry of every declared tool.
func Load() *Registry {
	loadOnce.Do(func() {
		reg, err := NewRegistry(declarations()...)
		if err != nil {
			panic(err)
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

func NewRegistry(configs ...Config) (*Registry, error) {
	reg := &Registry{
		byName: make(map[string]Config, len(configs)),
		infos:  make(map[string]*schema.ToolInfo, len(configs)),
	}
	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, errors.New("tool name is required")
		}
		if _, dup := reg.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", cfg.Name)
		}
		reg.byName[cfg.Name] = cfg
		reg.names = append(reg.names, cfg.Name)
		reg.infos[cfg.Name] = cfg.Info()
	}
	return reg, nil
}

func (r *Registry) Lookup(name string) (Config, bool) {
	cfg, ok := r.byName[name]
	return cfg, ok
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Infos returns the model contracts for names, in the order given.
func (r *Registry) Infos(names []string) ([]*schema.ToolInfo, error) {
	out := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		info, ok := r.infos[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		out = append(out, info)
	}
	return out, nil
}
