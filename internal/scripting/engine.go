package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

const entityTypeName = "ecs.entity"

var ErrUnknownTemplate = errors.New("unknown script template")

// Engine wraps a single gopher-lua VM holding the entity templates defined
// by the scripts in one directory. A script defines templates with
//
//	template("particle", function(e)
//	    e:add("position", { x = 0, y = 0 })
//	end)
//
// The VM is guarded by a mutex, so templates may run from any goroutine
// that creates entities.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
	dir string

	templates map[string]*lua.LFunction
	owner     map[string]string   // template -> defining file
	files     map[string][]string // file -> templates it defines
	pending   map[string]*lua.LFunction

	world *ecs.World
}

// NewEngine creates a Lua engine and loads every .lua file in dir. A missing
// directory loads nothing.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:        vm,
		log:       log,
		dir:       dir,
		templates: make(map[string]*lua.LFunction),
		owner:     make(map[string]string),
		files:     make(map[string][]string),
	}
	vm.SetGlobal("template", vm.NewFunction(e.luaTemplate))
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	e.registerEntityType()

	if err := e.loadDir(dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return e, nil
}

// Dir returns the directory the engine loads scripts from.
func (e *Engine) Dir() string { return e.dir }

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, _, err := e.loadFile(path); err != nil {
			return err
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// loadFile runs path and commits the templates it defines, replacing the
// ones it defined before. On error the previous definitions stay.
// Callers hold e.mu or own the engine exclusively.
func (e *Engine) loadFile(path string) (defined, dropped []string, err error) {
	e.pending = make(map[string]*lua.LFunction)
	defer func() { e.pending = nil }()

	if err := e.vm.DoFile(path); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	for name := range e.pending {
		if other, ok := e.owner[name]; ok && other != path {
			return nil, nil, fmt.Errorf("load %s: template %q already defined by %s", path, name, other)
		}
	}

	for _, name := range e.files[path] {
		if _, again := e.pending[name]; !again {
			delete(e.templates, name)
			delete(e.owner, name)
			dropped = append(dropped, name)
		}
	}
	for name, fn := range e.pending {
		e.templates[name] = fn
		e.owner[name] = path
		defined = append(defined, name)
	}
	sort.Strings(defined)
	e.files[path] = defined
	return defined, dropped, nil
}

// forget drops every template defined by path.
func (e *Engine) forget(path string) []string {
	dropped := e.files[path]
	for _, name := range dropped {
		delete(e.templates, name)
		delete(e.owner, name)
	}
	delete(e.files, path)
	return dropped
}

// Templates lists the loaded template names.
func (e *Engine) Templates() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install registers every loaded template with w. Later reloads keep w's
// template set in step with the scripts.
func (e *Engine) Install(w *ecs.World) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world = w
	for name := range e.templates {
		if err := w.AddTemplate(name, e.initFunc(name)); err != nil {
			return err
		}
	}
	e.log.Info("script templates installed", zap.Int("count", len(e.templates)))
	return nil
}

func (e *Engine) initFunc(name string) ecs.InitFunc {
	return func(w *ecs.World, ent *ecs.Entity) error {
		return e.Apply(name, w, ent)
	}
}

// Apply runs the named template against ent.
func (e *Engine) Apply(name string, w *ecs.World, ent *ecs.Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	ud := e.vm.NewUserData()
	ud.Value = &scriptEntity{world: w, entity: ent}
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(entityTypeName))
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, ud); err != nil {
		return fmt.Errorf("template %s: %w", name, err)
	}
	return nil
}

// Reload re-runs one script after it changed on disk. A file that no
// longer exists drops its templates.
func (e *Engine) Reload(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var defined, dropped []string
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		dropped = e.forget(path)
	} else {
		var err error
		if defined, dropped, err = e.loadFile(path); err != nil {
			e.log.Warn("script reload failed", zap.String("file", path), zap.Error(err))
			return err
		}
	}

	if e.world != nil {
		for _, name := range dropped {
			e.world.RemoveTemplate(name)
		}
		for _, name := range defined {
			e.world.RemoveTemplate(name)
			if err := e.world.AddTemplate(name, e.initFunc(name)); err != nil {
				return err
			}
		}
	}
	e.log.Info("script reloaded",
		zap.String("file", path),
		zap.Strings("defined", defined),
		zap.Strings("dropped", dropped))
	return nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

func (e *Engine) luaTemplate(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if e.pending == nil {
		L.RaiseError("template %q defined outside a script load", name)
		return 0
	}
	if _, dup := e.pending[name]; dup {
		L.RaiseError("template %q defined twice", name)
		return 0
	}
	e.pending[name] = fn
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Debug("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
