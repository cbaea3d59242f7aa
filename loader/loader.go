package loader

import (
	"fmt"
	"log"
	"maps"
	"path/filepath"
	goplugin "plugin"
	"strings"

	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/utils"
)

// Constructor builds an agent instance from its id and deploy-time config.
// Predefined agent types register one of these in the loader table.
type Constructor func(id string, config map[string]any) (core.Agent, error)

// Spec selects exactly one way of resolving an agent implementation.
// Supplying zero or several forms is a BadAgentSpec error.
type Spec struct {
	// Type names an entry in the predefined constructor table.
	Type string `json:"agent_type,omitempty"`
	// Module is a dotted reference "plugin.Symbol" resolved against the
	// loader's plugin directory at call time.
	Module string `json:"agent_module,omitempty"`
	// Path points at a plugin binary outside the plugin directory.
	Path string `json:"agent_path,omitempty"`
	// Symbol overrides the exported symbol looked up for Path specs.
	Symbol string `json:"agent_symbol,omitempty"`
	// Config is passed through to the resolved constructor.
	Config map[string]any `json:"config,omitempty"`
}

const defaultSymbol = "NewAgent"

// Loader resolves agent specifications into live agent instances. It holds
// no cache: every Load re-resolves, so replacing a plugin binary on disk
// hot-swaps the code the next deploy picks up.
type Loader struct {
	table     map[string]Constructor
	pluginDir string
}

// NewLoader copies the predefined-type table so later mutation of the
// caller's map cannot leak into the loader.
func NewLoader(table map[string]Constructor, pluginDir string) *Loader {
	return &Loader{
		table:     maps.Clone(table),
		pluginDir: pluginDir,
	}
}

// Load resolves spec into an agent instance for the given id.
func (l *Loader) Load(id string, spec Spec) (core.Agent, error) {
	forms := 0
	for _, form := range []string{spec.Type, spec.Module, spec.Path} {
		if form != "" {
			forms++
		}
	}
	if forms != 1 {
		return nil, core.ErrBadAgentSpec
	}

	switch {
	case spec.Type != "":
		return l.loadPredefined(id, spec)
	case spec.Module != "":
		return l.loadModule(id, spec)
	default:
		return l.loadPath(id, spec)
	}
}

func (l *Loader) loadPredefined(id string, spec Spec) (core.Agent, error) {
	constructor, known := l.table[spec.Type]
	if !known {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAgentType, spec.Type)
	}
	return construct(constructor, id, spec.Config)
}

// loadModule resolves a "plugin.Symbol" reference against the plugin
// directory. The symbol part is optional and defaults to NewAgent.
func (l *Loader) loadModule(id string, spec Spec) (core.Agent, error) {
	name, symbol := spec.Module, defaultSymbol
	if dot := strings.LastIndex(spec.Module, "."); dot >= 0 {
		name, symbol = spec.Module[:dot], spec.Module[dot+1:]
	}
	if name == "" || symbol == "" {
		return nil, fmt.Errorf("%w: malformed module reference %q", core.ErrLoadFailed, spec.Module)
	}
	if l.pluginDir == "" {
		return nil, fmt.Errorf("%w: no plugin directory configured", core.ErrLoadFailed)
	}
	return l.open(id, filepath.Join(l.pluginDir, name+".so"), symbol, spec.Config)
}

func (l *Loader) loadPath(id string, spec Spec) (core.Agent, error) {
	symbol := spec.Symbol
	if symbol == "" {
		symbol = defaultSymbol
	}
	return l.open(id, spec.Path, symbol, spec.Config)
}

// open loads a plugin binary and instantiates the agent behind the named
// symbol. Everything that can go wrong in foreign code is reported as a
// LoadError; it never escapes as a panic.
func (l *Loader) open(id, path, symbol string, config map[string]any) (core.Agent, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("%w: plugin %s does not exist", core.ErrLoadFailed, path)
	}

	so, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", core.ErrLoadFailed, path, err)
	}
	sym, err := so.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol %s in %s: %v", core.ErrLoadFailed, symbol, path, err)
	}

	switch v := sym.(type) {
	case func(string, map[string]any) (core.Agent, error):
		return construct(v, id, config)
	case *Constructor:
		if v == nil || *v == nil {
			return nil, fmt.Errorf("%w: constructor symbol %s is nil", core.ErrLoadFailed, symbol)
		}
		return construct(*v, id, config)
	case core.Agent:
		return v, nil
	case *core.Agent:
		if v == nil || *v == nil {
			return nil, fmt.Errorf("%w: agent symbol %s is nil", core.ErrLoadFailed, symbol)
		}
		return *v, nil
	default:
		return nil, fmt.Errorf("%w: symbol %s does not satisfy the agent contract", core.ErrLoadFailed, symbol)
	}
}

// construct invokes a constructor behind a panic boundary so malformed
// extension code cannot take down the caller.
func construct(constructor Constructor, id string, config map[string]any) (agent core.Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Agent constructor for %s panicked: %v", id, r)
			agent = nil
			err = fmt.Errorf("%w: constructor panic: %v", core.ErrLoadFailed, r)
		}
	}()

	agent, err = constructor(id, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLoadFailed, err)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: constructor returned no agent", core.ErrLoadFailed)
	}
	return agent, nil
}
