package entity

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/hpcforge/simrun/pkg/strategy"
)

// Application is a single runnable program with its file parameters and
// launcher run settings.
type Application struct {
	name string

	// Exe is the resolved absolute executable path.
	Exe string

	// ExeArgs are the concrete command line arguments.
	ExeArgs []string

	// Params are file parameters written into configuration files during
	// staging.
	Params map[string]string

	// Path is the application's run directory once staged.
	Path string

	runSettings map[string]string
}

// NewApplication builds an Application, resolving exe against PATH.
//
// A missing or unresolvable executable is a configuration error; nothing
// downstream can recover from it.
func NewApplication(name, exe string, exeArgs []string, params map[string]string, runSettings map[string]string) (*Application, error) {
	if strings.TrimSpace(exe) == "" {
		return nil, &strategy.ConfigurationError{
			Op:  "create application",
			Msg: fmt.Sprintf("no executable provided for %q", name),
		}
	}
	fullExe, err := exec.LookPath(exe)
	if err != nil {
		return nil, &strategy.ConfigurationError{
			Op:  "create application",
			Msg: fmt.Sprintf("executable %q for %q could not be resolved: %v", exe, name, err),
		}
	}
	if params == nil {
		params = map[string]string{}
	}
	if runSettings == nil {
		runSettings = map[string]string{}
	}
	return &Application{
		name:        name,
		Exe:         fullExe,
		ExeArgs:     exeArgs,
		Params:      params,
		runSettings: runSettings,
	}, nil
}

// Name implements Entity.
func (a *Application) Name() string { return a.name }

// Type implements Entity.
func (a *Application) Type() string { return "application" }

// RunSetting implements Entity.
func (a *Application) RunSetting(key string) string { return a.runSettings[key] }

// SetRunSetting records a launcher run setting (e.g. out_file, err_file).
func (a *Application) SetRunSetting(key, value string) {
	a.runSettings[key] = value
}

// ParamValue returns the value of one file parameter.
func (a *Application) ParamValue(param string) (string, bool) {
	v, ok := a.Params[param]
	return v, ok
}

func (a *Application) String() string {
	keys := make([]string, 0, len(a.runSettings))
	for k := range a.runSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nType: %s\n", a.name, a.Type())
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s = %s\n", k, a.runSettings[k])
	}
	return b.String()
}
